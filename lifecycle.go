package crosspost

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-crosspost/platform/linkedin"
	"github.com/google/uuid"
)

// RefreshMargin is the safety window before expiry in which a token is
// already treated as expired and refreshed proactively.
const RefreshMargin = 5 * time.Minute

// LinkedInRefresher performs the refresh exchange against the token endpoint.
type LinkedInRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*linkedin.Token, error)
}

// ValidToken is the outcome of a token resolution.
type ValidToken struct {
	AccessToken string
	Refreshed   bool
}

// TokenStatus is a read-only snapshot of a LinkedIn connection for UI display.
type TokenStatus struct {
	Connected      bool       `json:"connected"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsExpired      bool       `json:"is_expired"`
	CanRefresh     bool       `json:"can_refresh"`
	NeedsReconnect bool       `json:"needs_reconnect"`
}

// TokenManager decides token validity, refreshes transparently, and persists
// rotated credentials for LinkedIn connections.
type TokenManager struct {
	accounts  ConnectedAccounts
	refresher LinkedInRefresher
	margin    time.Duration
	logger    Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenManagerOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRefreshMargin overrides the default safety margin.
func WithRefreshMargin(margin time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if margin > 0 {
			m.margin = margin
		}
	}
}

// NewTokenManager creates a new token lifecycle manager.
func NewTokenManager(accounts ConnectedAccounts, refresher LinkedInRefresher, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		accounts:  accounts,
		refresher: refresher,
		margin:    RefreshMargin,
		logger:    defLogger{},
		locks:     map[uuid.UUID]*sync.Mutex{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// ValidToken returns a usable access token for the user's LinkedIn
// connection, refreshing and persisting rotated credentials when needed.
// A dead token, or a failed refresh exchange, yields ErrReauthRequired: the
// connection must be redone from scratch, not retried.
func (m *TokenManager) ValidToken(ctx context.Context, userID uuid.UUID) (*ValidToken, error) {
	account, err := m.accounts.Find(ctx, userID, PlatformLinkedIn)
	if err != nil {
		return nil, err
	}

	if !m.expired(account.TokenExpiresAt) {
		return &ValidToken{AccessToken: account.AccessToken}, nil
	}

	if account.RefreshToken == "" {
		return nil, ErrReauthRequired
	}

	// Refresh is exclusive per user so two racing publishes cannot run
	// separate exchanges and invalidate each other's rotated tokens.
	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a racing call may have refreshed already.
	account, err = m.accounts.Find(ctx, userID, PlatformLinkedIn)
	if err != nil {
		return nil, err
	}

	if !m.expired(account.TokenExpiresAt) {
		return &ValidToken{AccessToken: account.AccessToken}, nil
	}

	if account.RefreshToken == "" {
		return nil, ErrReauthRequired
	}

	token, err := m.refresher.Refresh(ctx, account.RefreshToken)
	if err != nil {
		m.logger.Error("LinkedIn token refresh failed for user %s: %v", userID, err)
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "token refresh failed, please reconnect your LinkedIn account").
			WithTextCode(TextCodeReauthRequired).
			WithCode(goerrors.CodeUnauthorized)
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// LinkedIn may not reissue one; keep the stored credential.
		refreshToken = account.RefreshToken
	}

	if err := m.accounts.UpdateTokens(ctx, userID, PlatformLinkedIn, token.AccessToken, refreshToken, token.ExpiresAt); err != nil {
		return nil, err
	}

	m.logger.Info("LinkedIn token refreshed for user %s", userID)

	return &ValidToken{AccessToken: token.AccessToken, Refreshed: true}, nil
}

// Status reports the connection state without mutating anything or touching
// the network.
func (m *TokenManager) Status(ctx context.Context, userID uuid.UUID) (*TokenStatus, error) {
	account, err := m.accounts.Find(ctx, userID, PlatformLinkedIn)
	if err != nil {
		if goerrors.Is(err, ErrNotConnected) {
			return &TokenStatus{Connected: false}, nil
		}
		return nil, err
	}

	isExpired := m.expired(account.TokenExpiresAt)
	canRefresh := account.RefreshToken != ""

	return &TokenStatus{
		Connected:      true,
		ExpiresAt:      account.TokenExpiresAt,
		IsExpired:      isExpired,
		CanRefresh:     canRefresh,
		NeedsReconnect: isExpired && !canRefresh,
	}, nil
}

// expired treats a missing expiry as expired, matching connections stored
// before expiry tracking existed.
func (m *TokenManager) expired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !time.Now().Before(expiresAt.Add(-m.margin))
}

func (m *TokenManager) lockFor(userID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}
