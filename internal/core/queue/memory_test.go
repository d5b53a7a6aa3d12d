package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBroker(t *testing.T, b *MemoryBroker, handler Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Consume(ctx, handler) }()
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMemoryBrokerDeliversTask(t *testing.T) {
	b := NewMemoryBroker(10, 2, 3)
	defer b.Close()

	var mu sync.Mutex
	var got []Task
	cancel := runBroker(t, b, func(_ context.Context, task Task) error {
		mu.Lock()
		got = append(got, task)
		mu.Unlock()
		return nil
	})
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), Task{DocumentID: 42}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	assert.Equal(t, int64(42), got[0].DocumentID)
	assert.Empty(t, b.DeadLetters())
}

func TestMemoryBrokerRetriesThenDeadLetters(t *testing.T) {
	b := NewMemoryBroker(10, 1, 3)
	defer b.Close()

	var mu sync.Mutex
	attempts := 0
	cancel := runBroker(t, b, func(_ context.Context, task Task) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("flaky downstream")
	})
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), Task{DocumentID: 7}))

	waitFor(t, func() bool { return len(b.DeadLetters()) == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts, "task should be attempted max_attempts times")

	dead := b.DeadLetters()
	assert.Equal(t, int64(7), dead[0].DocumentID)
	assert.Equal(t, 3, dead[0].Attempt)
}

func TestMemoryBrokerPermanentErrorDeadLettersImmediately(t *testing.T) {
	b := NewMemoryBroker(10, 1, 5)
	defer b.Close()

	var mu sync.Mutex
	attempts := 0
	cancel := runBroker(t, b, func(_ context.Context, task Task) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return MarkPermanent(errors.New("unreadable document"))
	})
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), Task{DocumentID: 9}))

	waitFor(t, func() bool { return len(b.DeadLetters()) == 1 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts, "permanent errors must not be retried")
}

func TestMemoryBrokerPublishAfterClose(t *testing.T) {
	b := NewMemoryBroker(10, 1, 3)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "double close must be safe")

	assert.Error(t, b.Publish(context.Background(), Task{DocumentID: 1}))
}

func TestParseBackend(t *testing.T) {
	got, err := ParseBackend("memory")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, got)

	got, err = ParseBackend("amqp")
	require.NoError(t, err)
	assert.Equal(t, BackendAMQP, got)

	got, err = ParseBackend("rabbitmq")
	require.NoError(t, err)
	assert.Equal(t, BackendAMQP, got)

	_, err = ParseBackend("kafka")
	assert.Error(t, err)
}

func TestMarkPermanent(t *testing.T) {
	assert.Nil(t, MarkPermanent(nil))
	assert.False(t, IsPermanent(errors.New("plain")))

	inner := errors.New("bad input")
	wrapped := MarkPermanent(inner)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, inner)
}
