package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBroker is a channel-backed broker for single-process deployments and
// tests. It mirrors the retry and dead-letter behaviour of the AMQP broker.
type MemoryBroker struct {
	tasks       chan Task
	maxAttempts int
	workers     int

	mu     sync.Mutex
	dead   []Task
	closed bool
}

var _ Broker = (*MemoryBroker)(nil)

func NewMemoryBroker(buffer, workers, maxAttempts int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 100
	}
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &MemoryBroker{
		tasks:       make(chan Task, buffer),
		maxAttempts: maxAttempts,
		workers:     workers,
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.tasks)
	}
	return nil
}

func (b *MemoryBroker) Publish(ctx context.Context, task Task) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("broker closed")
	}
	select {
	case b.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Consume(ctx context.Context, handler Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.work(ctx, handler)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (b *MemoryBroker) work(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-b.tasks:
			if !ok {
				return
			}
			b.handle(ctx, task, handler)
		}
	}
}

func (b *MemoryBroker) handle(ctx context.Context, task Task, handler Handler) {
	err := handler(ctx, task)
	if err == nil {
		return
	}

	task.Attempt++
	if IsPermanent(err) || task.Attempt >= b.maxAttempts {
		slog.Error("dead-lettering task",
			"document_id", task.DocumentID, "attempt", task.Attempt, "error", err)
		b.mu.Lock()
		b.dead = append(b.dead, task)
		b.mu.Unlock()
		return
	}

	slog.Warn("requeueing failed task",
		"document_id", task.DocumentID, "attempt", task.Attempt, "error", err)
	if pubErr := b.Publish(ctx, task); pubErr != nil {
		slog.Error("failed to requeue task", "document_id", task.DocumentID, "error", pubErr)
	}
}

// DeadLetters returns the tasks that exhausted their attempts or failed
// permanently.
func (b *MemoryBroker) DeadLetters() []Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Task, len(b.dead))
	copy(out, b.dead)
	return out
}
