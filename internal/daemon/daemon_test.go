package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"shuttle/internal/api"
	"shuttle/internal/auth"
	"shuttle/internal/daemon"
	"shuttle/internal/queue"
	"shuttle/internal/testsupport"
)

func startDaemon(t *testing.T) (*daemon.Daemon, *queue.Store, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api address not bound")
	}
	return d, store, "http://" + addr
}

func request(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

const adminToken = "test-admin-token"

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	cfg2 := *cfg
	cfg2.Paths.APIBind = "127.0.0.1:0"
	second, err := daemon.New(&cfg2, store, nil)
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon should fail to acquire the lock")
	}
}

func TestStatusRequiresValidToken(t *testing.T) {
	_, _, base := startDaemon(t)

	if resp := request(t, http.MethodGet, base+"/api/status", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}
	if resp := request(t, http.MethodGet, base+"/api/status", "wrong-token", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", resp.StatusCode)
	}

	resp := request(t, http.MethodGet, base+"/api/status", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin token: status = %d, want 200", resp.StatusCode)
	}
	status := decode[api.DaemonStatus](t, resp)
	if !status.Running || !status.Scheduler.Running {
		t.Fatalf("status = %+v, want running daemon and scheduler", status)
	}
}

func TestOperatorJWTAccepted(t *testing.T) {
	_, _, base := startDaemon(t)

	token, err := auth.Issue("test-token-secret", "operator-1", time.Minute)
	if err != nil {
		t.Fatalf("auth.Issue: %v", err)
	}
	resp := request(t, http.MethodGet, base+"/api/status", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("jwt: status = %d, want 200", resp.StatusCode)
	}

	expired, err := auth.Issue("test-token-secret", "operator-1", time.Nanosecond)
	if err != nil {
		t.Fatalf("auth.Issue expired: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	resp = request(t, http.MethodGet, base+"/api/status", expired, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired jwt: status = %d, want 401", resp.StatusCode)
	}
}

func TestUnauthorizedRequestsHaveNoSideEffects(t *testing.T) {
	d, store, base := startDaemon(t)

	body := api.EnqueueRequest{Content: "sneaky", Platforms: []string{"tiktok"}}
	if resp := request(t, http.MethodPost, base+"/api/queue", "", body); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	health, err := store.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 0 {
		t.Fatalf("queue has %d items after rejected enqueue, want 0", health.Total)
	}

	override := api.OverrideRequest{Action: "pause"}
	if resp := request(t, http.MethodPost, base+"/api/override", "garbage", override); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if d.Scheduler().Paused() {
		t.Fatal("rejected override must not pause the scheduler")
	}
}

func TestEnqueueAndListQueue(t *testing.T) {
	_, _, base := startDaemon(t)

	body := api.EnqueueRequest{
		Content:     "launch teaser",
		Platforms:   []string{"tiktok", "youtube"},
		Caption:     "big day",
		Hashtags:    []string{"launch"},
		ScheduledAt: time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	}
	resp := request(t, http.MethodPost, base+"/api/queue", adminToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enqueue status = %d, want 201", resp.StatusCode)
	}
	created := decode[api.EnqueueResponse](t, resp)
	if created.ID == "" {
		t.Fatal("enqueue returned empty id")
	}

	resp = request(t, http.MethodGet, base+"/api/queue?status=pending", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list := decode[api.QueueListResponse](t, resp)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}
	if list.Stats["pending"] != 1 {
		t.Fatalf("stats = %v", list.Stats)
	}

	resp = request(t, http.MethodGet, base+"/api/queue/"+created.ID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("describe status = %d", resp.StatusCode)
	}
	item := decode[api.QueueItemResponse](t, resp)
	if item.Item.Content != "launch teaser" || item.Item.Status != "pending" {
		t.Fatalf("item = %+v", item.Item)
	}

	resp = request(t, http.MethodGet, base+"/api/queue/not-a-real-id", adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing item status = %d, want 404", resp.StatusCode)
	}
}

func TestOverridePauseResumeForcePost(t *testing.T) {
	d, store, base := startDaemon(t)
	ctx := context.Background()

	resp := request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{Action: "pause"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause status = %d", resp.StatusCode)
	}
	if !d.Scheduler().Paused() {
		t.Fatal("scheduler should be paused")
	}

	resp = request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{Action: "resume"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status = %d", resp.StatusCode)
	}
	if d.Scheduler().Paused() {
		t.Fatal("scheduler should have resumed")
	}

	// force-post runs a cycle immediately. No credentials are stored, so the
	// simulated adapter rejects the item and it lands in failed.
	item := testsupport.Enqueue(t, store, "force me", "tiktok")
	resp = request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{Action: "force-post"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("force-post status = %d", resp.StatusCode)
	}
	result := decode[api.OverrideResponse](t, resp)
	if result.Fetched != 1 {
		t.Fatalf("force-post result = %+v, want 1 fetched", result)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed without credentials", got.Status)
	}

	// Overrides are audited with the acting principal.
	resp = request(t, http.MethodGet, base+"/api/logs", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logs status = %d", resp.StatusCode)
	}
	logs := decode[api.LogsResponse](t, resp)
	if !logs.Intact {
		t.Fatal("audit log should verify intact")
	}
	// The dispatch cycle writes its own audit entries (credential lookups),
	// so only the override entries carry the acting principal.
	actions := make(map[string]int)
	for _, entry := range logs.Entries {
		if !strings.HasPrefix(entry.Action, "override_") {
			continue
		}
		actions[entry.Action]++
		if entry.User != "admin" {
			t.Fatalf("override audit user = %q, want admin", entry.User)
		}
	}
	for _, want := range []string{"override_pause", "override_resume", "override_force-post"} {
		if actions[want] != 1 {
			t.Fatalf("actions = %v, want one %s", actions, want)
		}
	}
}

func TestMonitoringEndpoint(t *testing.T) {
	_, store, base := startDaemon(t)

	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, store, fmt.Sprintf("clip %d", i), "tiktok")
	}

	resp := request(t, http.MethodGet, base+"/api/monitoring", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("monitoring status = %d", resp.StatusCode)
	}
	mon := decode[api.MonitoringResponse](t, resp)
	if mon.Health != "healthy" {
		t.Fatalf("health = %q, want healthy for 3 pending", mon.Health)
	}
	if mon.Queue.Pending != 3 {
		t.Fatalf("pending = %d, want 3", mon.Queue.Pending)
	}
	if !mon.Scheduler.Running {
		t.Fatal("scheduler should report running")
	}
}

func TestDaemonRequiresCredentialSecret(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Credentials.Secret = ""
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := daemon.New(cfg, store, nil); err == nil {
		t.Fatal("daemon.New should refuse to run without a credential secret")
	}
}

func TestMetricsEndpointRequiresAuth(t *testing.T) {
	_, _, base := startDaemon(t)

	if resp := request(t, http.MethodGet, base+"/metrics", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}
	if resp := request(t, http.MethodGet, base+"/metrics", adminToken, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin token: status = %d, want 200", resp.StatusCode)
	}
}

func TestForcePostReportsUnusableItemIDs(t *testing.T) {
	_, store, base := startDaemon(t)
	ctx := context.Background()

	resp := request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{
		Action: "force-post",
		ItemID: "not-a-real-id",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", resp.StatusCode)
	}

	item := testsupport.Enqueue(t, store, "already out", "tiktok")
	if err := store.UpdateStatus(ctx, item.ID, queue.StatusScheduled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	resp = request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{
		Action: "force-post",
		ItemID: item.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("scheduled id: status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownOverrideAction(t *testing.T) {
	_, _, base := startDaemon(t)

	resp := request(t, http.MethodPost, base+"/api/override", adminToken, api.OverrideRequest{Action: "reboot"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown action", resp.StatusCode)
	}
}
