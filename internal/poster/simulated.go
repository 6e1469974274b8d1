package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"shuttle/internal/config"
	"shuttle/internal/credentials"
	"shuttle/internal/logging"
	"shuttle/internal/services"
)

// rules captures the per-platform content limits the adapters enforce.
type rules struct {
	maxBody     int
	maxCaption  int
	maxHashtags int
	urlBase     string
	idPrefix    string
}

var platformRules = map[string]rules{
	"tiktok": {
		maxBody:     2200,
		maxCaption:  2200,
		maxHashtags: 30,
		urlBase:     "https://www.tiktok.com/post/",
		idPrefix:    "tt",
	},
	"instagram": {
		maxBody:     2200,
		maxCaption:  2200,
		maxHashtags: 30,
		urlBase:     "https://www.instagram.com/p/",
		idPrefix:    "ig",
	},
	"youtube": {
		maxBody:     5000,
		maxCaption:  100,
		maxHashtags: 15,
		urlBase:     "https://www.youtube.com/watch?v=",
		idPrefix:    "yt",
	},
}

// Simulated is a conforming adapter that validates content against real
// platform limits and records submissions in memory instead of calling the
// platform API. It honors the Poster contract: SchedulePost validates
// first, and PostStatus reports exactly what SchedulePost recorded.
type Simulated struct {
	platform string
	rules    rules
	creds    *credentials.Store
	account  string
	logger   *slog.Logger

	mu    sync.Mutex
	posts map[string]PostStatus
}

// New builds a simulated adapter for a known platform. A nil credential
// store disables the credential gate, which only tests should do.
func New(platform string, creds *credentials.Store, account string, logger *slog.Logger) (*Simulated, error) {
	r, ok := platformRules[platform]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "poster", "new", "unknown platform "+platform, nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Simulated{
		platform: platform,
		rules:    r,
		creds:    creds,
		account:  account,
		logger:   logging.NewComponentLogger(logger, "poster."+platform),
		posts:    make(map[string]PostStatus),
	}, nil
}

// NewRegistryFromConfig registers a simulated adapter for every enabled
// platform.
func NewRegistryFromConfig(cfg *config.Config, creds *credentials.Store, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry()
	for _, platform := range cfg.Platforms.Enabled {
		p, err := New(platform, creds, cfg.Platforms.Account, logger)
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	}
	return registry, nil
}

func (s *Simulated) Platform() string { return s.platform }

// ValidateContent applies the platform's content limits. Violations are
// permanent validation errors, never retried.
func (s *Simulated) ValidateContent(_ context.Context, content Content) error {
	if content.Body == "" {
		return s.invalid("content body is empty")
	}
	if utf8.RuneCountInString(content.Body) > s.rules.maxBody {
		return s.invalid(fmt.Sprintf("content body exceeds %d characters", s.rules.maxBody))
	}
	if utf8.RuneCountInString(content.Caption) > s.rules.maxCaption {
		return s.invalid(fmt.Sprintf("caption exceeds %d characters", s.rules.maxCaption))
	}
	if len(NormalizeHashtags(content.Hashtags)) > s.rules.maxHashtags {
		return s.invalid(fmt.Sprintf("more than %d hashtags", s.rules.maxHashtags))
	}
	return nil
}

// SchedulePost validates, checks the platform credential, and records the
// submission. The returned id is opaque and stable for later status
// queries.
func (s *Simulated) SchedulePost(ctx context.Context, content Content) (string, error) {
	if err := s.ValidateContent(ctx, content); err != nil {
		return "", err
	}
	if err := s.checkCredential(ctx); err != nil {
		return "", err
	}

	postID := fmt.Sprintf("%s-%s", s.rules.idPrefix, uuid.NewString())
	status := PostStatus{
		State: PostScheduled,
		URL:   s.rules.urlBase + postID,
	}
	if !content.ScheduledAt.After(time.Now()) {
		status.State = PostPublished
	}

	s.mu.Lock()
	s.posts[postID] = status
	s.mu.Unlock()

	s.logger.Info("post scheduled",
		logging.String(logging.FieldItemID, content.ID),
		logging.String("post_id", postID))
	return postID, nil
}

// PostStatus reports the recorded state for a post id.
func (s *Simulated) PostStatus(_ context.Context, postID string) (PostStatus, error) {
	s.mu.Lock()
	status, ok := s.posts[postID]
	s.mu.Unlock()
	if !ok {
		return PostStatus{}, services.Wrap(services.ErrNotFound, "poster."+s.platform, "status", "unknown post id "+postID, nil)
	}
	return status, nil
}

func (s *Simulated) checkCredential(ctx context.Context) error {
	if s.creds == nil {
		return nil
	}
	cred, err := s.creds.Get(ctx, s.platform, s.account)
	if errors.Is(err, credentials.ErrNotFound) {
		return services.Wrap(services.ErrUnauthorized, "poster."+s.platform, "schedule", "no credential for account "+s.account, nil)
	}
	if err != nil {
		return err
	}
	if cred.Expired(time.Now()) {
		return services.Wrap(services.ErrUnauthorized, "poster."+s.platform, "schedule", "credential expired for account "+s.account, nil)
	}
	return nil
}

func (s *Simulated) invalid(message string) error {
	return services.Wrap(services.ErrValidation, "poster."+s.platform, "validate", message, nil)
}
