package queue

import (
	"context"
	"errors"
	"fmt"
)

// Task is the unit of work handed from the upload path to the ingestion
// workers. Payload carries the raw document bytes base64-encoded so the task
// survives any broker that only moves JSON; workers fall back to the database
// copy when it is empty.
type Task struct {
	DocumentID int64  `json:"document_id"`
	PayloadB64 string `json:"payload_b64,omitempty"`
	Attempt    int    `json:"attempt"`
}

// Handler processes one task. A nil return acknowledges the task. An error
// return redelivers it with an incremented attempt counter, unless the error
// is marked permanent or the attempt limit is reached, in which case the task
// is dead-lettered.
type Handler func(ctx context.Context, task Task) error

// Broker moves tasks between the upload path and the workers.
type Broker interface {
	Publish(ctx context.Context, task Task) error
	// Consume blocks until ctx is cancelled, feeding tasks to the handler.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Backend selects the broker implementation.
type Backend int

const (
	BackendMemory Backend = iota
	BackendAMQP
)

func ParseBackend(s string) (Backend, error) {
	switch s {
	case "memory":
		return BackendMemory, nil
	case "amqp", "rabbitmq":
		return BackendAMQP, nil
	default:
		return 0, fmt.Errorf("unknown queue backend %q", s)
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps err so brokers dead-letter the task immediately
// instead of retrying it. Use it for failures that cannot succeed on a
// second attempt, such as unreadable input or invalid configuration.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
