package crosspost

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-crosspost/platform"
	"github.com/goliatone/go-crosspost/platform/bluesky"
	"github.com/goliatone/go-crosspost/platform/linkedin"
	"github.com/google/uuid"
)

// PublishRequest is one user action to publish content to selected platforms.
// Platform duplicates collapse; ordering of results is by key, not arrival.
type PublishRequest struct {
	Content   string
	Platforms []Platform
	Media     []platform.Media
}

// Validate runs validation rules. A request is rejected here before any
// external call is made.
func (r PublishRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" && len(r.Media) == 0 {
		return goerrors.New("content or media required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Platforms, validation.Required, validation.By(validatePlatforms)),
		validation.Field(&r.Media, validation.By(validateMedia)),
	)
}

func validatePlatforms(value any) error {
	platforms, ok := value.([]Platform)
	if !ok || len(platforms) == 0 {
		return fmt.Errorf("at least one platform required")
	}
	for _, name := range platforms {
		if !KnownPlatform(name) {
			return fmt.Errorf("unknown platform: %s", name)
		}
	}
	return nil
}

func validateMedia(value any) error {
	media, ok := value.([]platform.Media)
	if !ok {
		return nil
	}
	if len(media) > platform.MaxMediaAttachments {
		return fmt.Errorf("at most %d media attachments allowed", platform.MaxMediaAttachments)
	}
	for _, m := range media {
		if len(m.Data) == 0 {
			return fmt.Errorf("media attachment %q is empty", m.Filename)
		}
		if len(m.Data) > platform.MaxMediaBytes {
			return fmt.Errorf("media attachment %q exceeds %d bytes", m.Filename, platform.MaxMediaBytes)
		}
	}
	return nil
}

// Publisher fans one publish request out across the requested platforms.
// Platform branches are independent: a failure on one never aborts the rest.
type Publisher struct {
	accounts ConnectedAccounts
	tokens   *TokenManager
	linkedin *linkedin.Provider
	bluesky  *bluesky.Provider
	timeout  time.Duration
	logger   Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPlatformTimeout bounds each per-platform invocation.
func WithPlatformTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewPublisher creates the publish orchestrator.
func NewPublisher(
	accounts ConnectedAccounts,
	tokens *TokenManager,
	li *linkedin.Provider,
	bs *bluesky.Provider,
	opts ...PublisherOption,
) *Publisher {
	p := &Publisher{
		accounts: accounts,
		tokens:   tokens,
		linkedin: li,
		bluesky:  bs,
		timeout:  30 * time.Second,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Publish returns one result per requested platform, keyed by platform.
func (p *Publisher) Publish(ctx context.Context, userID uuid.UUID, req PublishRequest) (map[Platform]platform.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	results := make(map[Platform]platform.Result, len(req.Platforms))

	for _, name := range dedupe(req.Platforms) {
		results[name] = p.publishTo(ctx, userID, name, req)
	}

	return results, nil
}

func (p *Publisher) publishTo(ctx context.Context, userID uuid.UUID, name Platform, req PublishRequest) platform.Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	account, err := p.accounts.Find(ctx, userID, name)
	if err != nil {
		if goerrors.Is(err, ErrNotConnected) {
			return platform.Failure("%s not connected. Go to Settings.", name)
		}
		p.logger.Error("account lookup failed for %s: %v", name, err)
		return platform.Failure("account lookup failed: %v", err)
	}

	switch name {
	case PlatformLinkedIn:
		token, err := p.tokens.ValidToken(ctx, userID)
		if err != nil {
			return platform.Failure("%s", err.Error())
		}
		if token.Refreshed {
			p.logger.Info("LinkedIn token refreshed for user %s", userID)
		}
		return p.linkedin.Publish(ctx, token.AccessToken, account.PlatformUserID, req.Content, req.Media)

	case PlatformBluesky:
		return p.bluesky.Publish(ctx, account.Handle, account.AppPassword, req.Content, req.Media)

	default:
		return platform.Failure("unsupported platform: %s", name)
	}
}

func dedupe(platforms []Platform) []Platform {
	seen := make(map[Platform]bool, len(platforms))
	out := make([]Platform, 0, len(platforms))
	for _, name := range platforms {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
