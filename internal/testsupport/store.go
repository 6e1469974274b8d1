package testsupport

import (
	"context"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue adds a content item for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, content string, platforms ...string) *queue.Item {
	t.Helper()

	if len(platforms) == 0 {
		platforms = []string{"tiktok"}
	}
	item, err := store.Add(context.Background(), queue.NewItem{
		Content:     content,
		Platforms:   platforms,
		ScheduledAt: time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return item
}
