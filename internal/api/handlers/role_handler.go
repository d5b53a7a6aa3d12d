package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/models"
)

type RoleHandler struct {
	dbclient core.DbClient
}

func NewRoleHandler(dbclient core.DbClient) *RoleHandler {
	return &RoleHandler{dbclient: dbclient}
}

func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.dbclient.ListRoles(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(roles)
}

func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil || role.RoleName == "" {
		http.Error(w, "role_name is required", http.StatusBadRequest)
		return
	}
	if err := h.dbclient.CreateRole(r.Context(), &role); err != nil {
		http.Error(w, "role exists", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(role)
}

func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.dbclient.ListPermissions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(perms)
}

func (h *RoleHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var perm models.Permission
	if err := json.NewDecoder(r.Body).Decode(&perm); err != nil || perm.Name == "" {
		http.Error(w, "permission_name is required", http.StatusBadRequest)
		return
	}
	if err := h.dbclient.CreatePermission(r.Context(), &perm); err != nil {
		http.Error(w, "permission exists", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(perm)
}

type grantRequest struct {
	PermissionID int64 `json:"permission_id"`
}

// GrantPermission attaches a permission to the role in the URL.
func (h *RoleHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid role id", http.StatusBadRequest)
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PermissionID == 0 {
		http.Error(w, "permission_id is required", http.StatusBadRequest)
		return
	}
	if err := h.dbclient.GrantPermission(r.Context(), roleID, req.PermissionID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	RoleID int64 `json:"role_id"`
}

// AssignRole attaches a role to the user in the URL.
func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoleID == 0 {
		http.Error(w, "role_id is required", http.StatusBadRequest)
		return
	}
	if err := h.dbclient.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
