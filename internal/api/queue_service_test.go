package api_test

import (
	"context"
	"testing"

	"shuttle/internal/api"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

func TestQueueServiceListAndDescribe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewQueueService(store)
	ctx := context.Background()

	item := testsupport.Enqueue(t, store, "clip one", "tiktok", "youtube")

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ID != item.ID || items[0].Status != string(queue.StatusPending) {
		t.Fatalf("item = %+v", items[0])
	}
	if len(items[0].Platforms) != 2 {
		t.Fatalf("platforms = %v", items[0].Platforms)
	}
	if items[0].ScheduledAt == "" || items[0].CreatedAt == "" {
		t.Fatal("timestamps should be formatted")
	}

	dto, err := svc.Describe(ctx, item.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if dto == nil || dto.ID != item.ID {
		t.Fatalf("dto = %+v", dto)
	}

	missing, err := svc.Describe(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("Describe missing: %v", err)
	}
	if missing != nil {
		t.Fatal("missing id should yield nil without error")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[string(queue.StatusPending)] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}
