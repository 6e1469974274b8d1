// Package poster defines the capability interface the scheduler uses to
// submit content to destination platforms, plus simulated per-platform
// adapters.
package poster

import (
	"context"
	"sort"
	"sync"
	"time"

	"shuttle/internal/services"
)

// Content is the platform-facing view of one queue item.
type Content struct {
	ID          string
	Body        string
	Caption     string
	Hashtags    []string
	ScheduledAt time.Time
}

// PostState is the delivery state a platform reports for a submitted post.
type PostState string

const (
	PostScheduled PostState = "scheduled"
	PostPublished PostState = "published"
	PostFailed    PostState = "failed"
)

// PostStatus is the platform's answer to a status query.
type PostStatus struct {
	State PostState
	URL   string
	Error string
}

// Poster submits content to one destination platform. Implementations must
// validate before scheduling and report a status consistent with what
// SchedulePost returned.
type Poster interface {
	Platform() string
	ValidateContent(ctx context.Context, content Content) error
	SchedulePost(ctx context.Context, content Content) (string, error)
	PostStatus(ctx context.Context, postID string) (PostStatus, error)
}

// Registry holds the poster for each enabled platform. Adapters are
// interchangeable behind the Poster interface.
type Registry struct {
	mu      sync.RWMutex
	posters map[string]Poster
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{posters: make(map[string]Poster)}
}

// Register adds or replaces the poster for its platform.
func (r *Registry) Register(p Poster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posters[p.Platform()] = p
}

// Get resolves the poster for a platform. Unknown platforms are a
// configuration error, not a transient one.
func (r *Registry) Get(platform string) (Poster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posters[platform]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "poster", "resolve", "no adapter registered for platform "+platform, nil)
	}
	return p, nil
}

// Platforms lists registered platforms in sorted order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.posters))
	for name := range r.posters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
