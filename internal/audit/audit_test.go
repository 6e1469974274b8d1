package audit_test

import (
	"context"
	"testing"
	"time"

	"shuttle/internal/audit"
	"shuttle/internal/testsupport"
)

func TestAppendAndLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	log := audit.NewLog(store.DB())
	ctx := context.Background()

	if err := log.Append(ctx, "credential_set", "alice", "tiktok/alice"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Append(ctx, "queue_add", "", "item abc"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := log.Logs(ctx, "")
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "credential_set" || entries[0].User != "alice" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}

	filtered, err := log.Logs(ctx, "alice")
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 entry for alice, got %d", len(filtered))
	}
}

func TestAppendRejectsEmptyAction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	log := audit.NewLog(store.DB())

	if err := log.Append(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error for empty action")
	}
}

func TestVerifyIntegrity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	log := audit.NewLog(store.DB())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := log.Append(ctx, "action", "", ""); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	ok, err := log.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if !ok {
		t.Fatal("expected chronological log to verify")
	}

	// Force an out-of-order timestamp behind the log's back.
	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if _, err := store.DB().ExecContext(ctx,
		`INSERT INTO audit_log (ts, action) VALUES (?, ?)`, past, "backdated"); err != nil {
		t.Fatalf("insert backdated entry: %v", err)
	}

	ok, err = log.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("VerifyIntegrity failed: %v", err)
	}
	if ok {
		t.Fatal("expected out-of-order entry to fail integrity check")
	}
}
