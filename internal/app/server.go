package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lexara-id/lexara/internal/api/handlers"
	appMiddleware "github.com/lexara-id/lexara/internal/api/middlewares"
	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/core/queue"
	"github.com/lexara-id/lexara/internal/core/vectorstore"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	obj core.ObjectClient,
	broker queue.Broker,
	emb core.EmbeddingProvider,
	store vectorstore.Store,
) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(db, obj, broker, emb, store, cfg)
	roleHandler := handlers.NewRoleHandler(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWT(cfg.JWTSecret))

			protected.With(appMiddleware.RequireScope(db, "write:documents")).
				Post("/documents/upload", docHandler.UploadDocument)
			protected.With(appMiddleware.RequireScope(db, "read:documents")).
				Get("/documents", docHandler.ListDocuments)
			protected.With(appMiddleware.RequireScope(db, "read:documents")).
				Get("/documents/{id}", docHandler.GetDocument)
			protected.With(appMiddleware.RequireScope(db, "delete:documents")).
				Delete("/documents/{id}", docHandler.DeleteDocument)
			protected.With(appMiddleware.RequireScope(db, "read:documents")).
				Post("/documents/search", docHandler.SearchDocuments)

			protected.With(appMiddleware.RequireScope(db, "read:roles")).
				Get("/roles", roleHandler.ListRoles)
			protected.With(appMiddleware.RequireScope(db, "write:roles")).
				Post("/roles", roleHandler.CreateRole)
			protected.With(appMiddleware.RequireScope(db, "read:roles")).
				Get("/permissions", roleHandler.ListPermissions)
			protected.With(appMiddleware.RequireScope(db, "write:roles")).
				Post("/permissions", roleHandler.CreatePermission)
			protected.With(appMiddleware.RequireScope(db, "write:roles")).
				Post("/roles/{id}/permissions", roleHandler.GrantPermission)
			protected.With(appMiddleware.RequireScope(db, "write:roles")).
				Post("/users/{id}/roles", roleHandler.AssignRole)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
