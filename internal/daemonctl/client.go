package daemonctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"shuttle/internal/api"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a running shuttle daemon over its operator API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon API at addr. The token is sent as
// a bearer credential on every request.
func NewClient(addr, token string) *Client {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		base:  strings.TrimRight(addr, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Status fetches daemon runtime state.
func (c *Client) Status() (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.do(http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueList fetches queue items, optionally filtered to one status.
func (c *Client) QueueList(status string) (*api.QueueListResponse, error) {
	path := "/api/queue"
	if status = strings.TrimSpace(status); status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out api.QueueListResponse
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Enqueue submits a new content item.
func (c *Client) Enqueue(req api.EnqueueRequest) (*api.EnqueueResponse, error) {
	var out api.EnqueueResponse
	if err := c.do(http.MethodPost, "/api/queue", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Describe fetches one queue item by id.
func (c *Client) Describe(id string) (*api.QueueItemResponse, error) {
	var out api.QueueItemResponse
	if err := c.do(http.MethodGet, "/api/queue/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Override sends a manual override action.
func (c *Client) Override(req api.OverrideRequest) (*api.OverrideResponse, error) {
	var out api.OverrideResponse
	if err := c.do(http.MethodPost, "/api/override", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs fetches audit entries, optionally filtered by acting user.
func (c *Client) Logs(user string) (*api.LogsResponse, error) {
	path := "/api/logs"
	if user = strings.TrimSpace(user); user != "" {
		path += "?user=" + url.QueryEscape(user)
	}
	var out api.LogsResponse
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Monitoring fetches the health snapshot.
func (c *Client) Monitoring() (*api.MonitoringResponse, error) {
	var out api.MonitoringResponse
	if err := c.do(http.MethodGet, "/api/monitoring", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENOENT) ||
		strings.Contains(err.Error(), "connection refused")
}
