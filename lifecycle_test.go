package crosspost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crosspost/platform/linkedin"
)

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*ConnectedAccount
	finds    int
	updates  int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: map[string]*ConnectedAccount{}}
}

func (m *memoryAccounts) key(userID uuid.UUID, platform Platform) string {
	return userID.String() + "/" + platform
}

func (m *memoryAccounts) Upsert(_ context.Context, account *ConnectedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	copied := *account
	m.accounts[m.key(account.UserID, account.Platform)] = &copied
	return nil
}

func (m *memoryAccounts) Find(_ context.Context, userID uuid.UUID, platform Platform) (*ConnectedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	account, ok := m.accounts[m.key(userID, platform)]
	if !ok {
		return nil, ErrNotConnected
	}
	copied := *account
	return &copied, nil
}

func (m *memoryAccounts) List(_ context.Context, userID uuid.UUID) ([]*ConnectedAccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var infos []*ConnectedAccountInfo
	for _, account := range m.accounts {
		if account.UserID == userID {
			infos = append(infos, &ConnectedAccountInfo{
				ID:       account.ID,
				Platform: account.Platform,
				Handle:   account.Handle,
			})
		}
	}
	return infos, nil
}

func (m *memoryAccounts) UpdateTokens(_ context.Context, userID uuid.UUID, platform Platform, accessToken, refreshToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	account, ok := m.accounts[m.key(userID, platform)]
	if !ok {
		return ErrNotConnected
	}
	account.AccessToken = accessToken
	account.RefreshToken = refreshToken
	account.TokenExpiresAt = &expiresAt
	return nil
}

func (m *memoryAccounts) Delete(_ context.Context, userID uuid.UUID, platform Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, m.key(userID, platform))
	return nil
}

type stubRefresher struct {
	mu    sync.Mutex
	calls int
	token *linkedin.Token
	err   error
}

func (s *stubRefresher) Refresh(_ context.Context, _ string) (*linkedin.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func connectLinkedIn(t *testing.T, accounts *memoryAccounts, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, accounts.Upsert(context.Background(), &ConnectedAccount{
		UserID:         userID,
		Platform:       PlatformLinkedIn,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: &expiresAt,
		PlatformUserID: "sub-123",
	}))
}

func TestTokenManagerValidTokenStillFresh(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	connectLinkedIn(t, accounts, userID, "fresh-token", "refresh", time.Now().Add(time.Hour))

	refresher := &stubRefresher{}
	manager := NewTokenManager(accounts, refresher)

	token, err := manager.ValidToken(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token.AccessToken)
	assert.False(t, token.Refreshed)
	assert.Equal(t, 0, refresher.calls)
}

func TestTokenManagerRefreshesInsideMargin(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	// expires in 4 minutes, inside the 5 minute margin
	connectLinkedIn(t, accounts, userID, "stale-token", "refresh", time.Now().Add(4*time.Minute))

	refresher := &stubRefresher{token: &linkedin.Token{
		AccessToken:  "rotated-token",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	manager := NewTokenManager(accounts, refresher)

	token, err := manager.ValidToken(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", token.AccessToken)
	assert.True(t, token.Refreshed)
	assert.Equal(t, 1, refresher.calls)

	stored, err := accounts.Find(context.Background(), userID, PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", stored.AccessToken)
	assert.Equal(t, "rotated-refresh", stored.RefreshToken)
}

func TestTokenManagerKeepsOldRefreshTokenWhenNotReissued(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	connectLinkedIn(t, accounts, userID, "stale-token", "original-refresh", time.Now().Add(-time.Minute))

	refresher := &stubRefresher{token: &linkedin.Token{
		AccessToken: "rotated-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	manager := NewTokenManager(accounts, refresher)

	_, err := manager.ValidToken(context.Background(), userID)
	require.NoError(t, err)

	stored, err := accounts.Find(context.Background(), userID, PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "original-refresh", stored.RefreshToken)
}

func TestTokenManagerExpiredWithoutRefreshToken(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	connectLinkedIn(t, accounts, userID, "dead-token", "", time.Now().Add(-time.Hour))

	refresher := &stubRefresher{}
	manager := NewTokenManager(accounts, refresher)

	_, err := manager.ValidToken(context.Background(), userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, 0, refresher.calls)

	// the stored row is untouched
	stored, findErr := accounts.Find(context.Background(), userID, PlatformLinkedIn)
	require.NoError(t, findErr)
	assert.Equal(t, "dead-token", stored.AccessToken)
}

func TestTokenManagerMissingExpiryTreatedAsExpired(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	require.NoError(t, accounts.Upsert(context.Background(), &ConnectedAccount{
		UserID:       userID,
		Platform:     PlatformLinkedIn,
		AccessToken:  "legacy-token",
		RefreshToken: "refresh",
	}))

	refresher := &stubRefresher{token: &linkedin.Token{
		AccessToken:  "rotated-token",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	manager := NewTokenManager(accounts, refresher)

	token, err := manager.ValidToken(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, token.Refreshed)
}

func TestTokenManagerRefreshFailureMapsToReauth(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	connectLinkedIn(t, accounts, userID, "stale-token", "revoked-refresh", time.Now().Add(-time.Minute))

	refresher := &stubRefresher{err: goerrors.New("invalid_grant", goerrors.CategoryAuth)}
	manager := NewTokenManager(accounts, refresher)

	_, err := manager.ValidToken(context.Background(), userID)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, TextCodeReauthRequired, richErr.TextCode)
	assert.Equal(t, 0, accounts.updates)
}

func TestTokenManagerNotConnected(t *testing.T) {
	manager := NewTokenManager(newMemoryAccounts(), &stubRefresher{})

	_, err := manager.ValidToken(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTokenManagerConcurrentRefreshRunsOnce(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	connectLinkedIn(t, accounts, userID, "stale-token", "refresh", time.Now().Add(-time.Minute))

	refresher := &stubRefresher{token: &linkedin.Token{
		AccessToken:  "rotated-token",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	manager := NewTokenManager(accounts, refresher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := manager.ValidToken(context.Background(), userID)
			assert.NoError(t, err)
			assert.Equal(t, "rotated-token", token.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.calls)
}

func TestTokenManagerConnectThenStatusRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	provider := linkedin.New(linkedin.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL,
	})

	token, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	accounts := newMemoryAccounts()
	userID := uuid.New()
	require.NoError(t, accounts.Upsert(context.Background(), &ConnectedAccount{
		UserID:         userID,
		Platform:       PlatformLinkedIn,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: &token.ExpiresAt,
	}))

	manager := NewTokenManager(accounts, provider)

	status, err := manager.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.IsExpired)
	assert.True(t, status.CanRefresh)
}

func TestTokenManagerStatus(t *testing.T) {
	accounts := newMemoryAccounts()
	userID := uuid.New()
	manager := NewTokenManager(accounts, &stubRefresher{})

	status, err := manager.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, status.Connected)

	expiresAt := time.Now().Add(time.Hour)
	connectLinkedIn(t, accounts, userID, "token", "refresh", expiresAt)

	status, err = manager.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.IsExpired)
	assert.True(t, status.CanRefresh)
	assert.False(t, status.NeedsReconnect)

	connectLinkedIn(t, accounts, userID, "token", "", time.Now().Add(-time.Hour))

	status, err = manager.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.True(t, status.IsExpired)
	assert.False(t, status.CanRefresh)
	assert.True(t, status.NeedsReconnect)
}
