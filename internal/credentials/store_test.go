package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shuttle/internal/audit"
	"shuttle/internal/testsupport"
)

func newTestStore(t *testing.T) (*Store, *audit.Log) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	qs := testsupport.MustOpenStore(t, cfg)
	log := audit.NewLog(qs.DB())
	store, err := NewStore(qs.DB(), cfg.Credentials.Secret, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, log
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	err := store.Set(ctx, Credential{
		Platform:     "TikTok",
		UserID:       "creator-1",
		AccessToken:  "at-secret",
		RefreshToken: "rt-secret",
		ExpiresAt:    expires,
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	cred, err := store.Get(ctx, "tiktok", "creator-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cred.AccessToken != "at-secret" || cred.RefreshToken != "rt-secret" {
		t.Fatalf("tokens did not round trip: %+v", cred)
	}
	if !cred.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry = %v, want %v", cred.ExpiresAt, expires)
	}
	if cred.Platform != "tiktok" {
		t.Fatalf("platform not normalized: %q", cred.Platform)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "youtube", "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetOverwritesExisting(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, token := range []string{"first", "second"} {
		err := store.Set(ctx, Credential{Platform: "instagram", UserID: "u1", AccessToken: token})
		if err != nil {
			t.Fatalf("Set(%s): %v", token, err)
		}
	}

	cred, err := store.Get(ctx, "instagram", "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cred.AccessToken != "second" {
		t.Fatalf("access token = %q, want %q", cred.AccessToken, "second")
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "instagram/u1" {
		t.Fatalf("keys = %v, want exactly instagram/u1", keys)
	}
}

func TestEveryOperationAuditedOnce(t *testing.T) {
	store, log := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, Credential{Platform: "tiktok", UserID: "u1", AccessToken: "tok"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Get(ctx, "tiktok", "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := store.Remove(ctx, "tiktok", "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	entries, err := log.Logs(ctx, "")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(entries))
	}
	wantActions := []string{"credential_set", "credential_get", "credential_remove"}
	for i, entry := range entries {
		if entry.Action != wantActions[i] {
			t.Fatalf("entry %d action = %q, want %q", i, entry.Action, wantActions[i])
		}
		if entry.Details != "tiktok/u1" {
			t.Fatalf("entry %d details = %q, want key only", i, entry.Details)
		}
		if strings.Contains(entry.Details, "tok") && entry.Details != "tiktok/u1" {
			t.Fatalf("audit entry leaked secret material: %q", entry.Details)
		}
	}
}

func TestRemoveMissingKeyIsAudited(t *testing.T) {
	store, log := newTestStore(t)
	ctx := context.Background()

	if err := store.Remove(ctx, "tiktok", "ghost"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	entries, err := log.Logs(ctx, "")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "credential_remove" {
		t.Fatalf("entries = %+v, want single credential_remove", entries)
	}
}

func TestSealedAtRest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, Credential{Platform: "tiktok", UserID: "u1", AccessToken: "plain-token-value"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var sealed []byte
	row := store.db.QueryRowContext(ctx, `SELECT access_token_sealed FROM credentials WHERE platform = ? AND user_id = ?`, "tiktok", "u1")
	if err := row.Scan(&sealed); err != nil {
		t.Fatalf("scan sealed token: %v", err)
	}
	if strings.Contains(string(sealed), "plain-token-value") {
		t.Fatal("access token stored in the clear")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if (Credential{}).Expired(now) {
		t.Fatal("zero expiry must never count as expired")
	}
	if !(Credential{ExpiresAt: now.Add(-time.Minute)}).Expired(now) {
		t.Fatal("past expiry should report expired")
	}
	if (Credential{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("future expiry should not report expired")
	}
}
