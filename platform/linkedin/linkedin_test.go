package linkedin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crosspost/platform"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/settings/linkedin/callback",
	})

	authURL := provider.AuthCodeURL("state-token")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://example.com/settings/linkedin/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-token", query.Get("state"))

	scope := query.Get("scope")
	assert.Contains(t, scope, "openid")
	assert.Contains(t, scope, "profile")
	assert.Contains(t, scope, "w_member_social")
}

func TestProviderExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		values, err := url.ParseQuery(string(body))
		assert.NoError(t, err)
		assert.Equal(t, "authorization_code", values.Get("grant_type"))
		assert.Equal(t, "auth-code", values.Get("code"))
		assert.Equal(t, "client-id", values.Get("client_id"))
		assert.Equal(t, "client-secret", values.Get("client_secret"))
		assert.Equal(t, "https://example.com/callback", values.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"expires_in":    5184000,
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://example.com/callback",
		TokenURL:     server.URL,
	})

	token, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-token", token.AccessToken)
	assert.Equal(t, "refresh-token", token.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(5184000*time.Second), token.ExpiresAt, 5*time.Second)
}

func TestProviderExchangeErrorNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "authorization code expired",
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL,
	})

	_, err := provider.Exchange(context.Background(), "stale-code")
	require.Error(t, err)

	var provErr *platform.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "linkedin", provErr.Provider)
	assert.Equal(t, "invalid_grant", provErr.Code)
	assert.Contains(t, provErr.Error(), "authorization code expired")
}

func TestProviderRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		values, err := url.ParseQuery(string(body))
		assert.NoError(t, err)
		assert.Equal(t, "refresh_token", values.Get("grant_type"))
		assert.Equal(t, "old-refresh", values.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		// LinkedIn does not always reissue a refresh token
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL,
	})

	token, err := provider.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, "", token.RefreshToken)
}

func TestProviderUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":   "member-123",
			"name":  "Octo Cat",
			"email": "octo@example.com",
		})
	}))
	defer server.Close()

	provider := New(Config{UserInfoURL: server.URL})

	profile, err := provider.UserInfo(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "member-123", profile.Sub)
	assert.Equal(t, "Octo Cat", profile.Name)
}

func TestProviderPublishTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))

		var post map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		assert.Equal(t, "urn:li:person:member-123", post["author"])
		assert.Equal(t, "PUBLISHED", post["lifecycleState"])

		content := post["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
		assert.Equal(t, "NONE", content["shareMediaCategory"])
		assert.Equal(t, "hello linkedin", content["shareCommentary"].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "urn:li:ugcPost:999"})
	}))
	defer server.Close()

	provider := New(Config{PostsURL: server.URL})

	result := provider.Publish(context.Background(), "access-token", "member-123", "hello linkedin", nil)
	assert.True(t, result.Success)
	assert.Equal(t, "urn:li:ugcPost:999", result.ID)
}

func TestProviderPublishWithImage(t *testing.T) {
	var uploadedBody []byte

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))

		var register map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&register))
		request := register["registerUploadRequest"].(map[string]any)
		assert.Equal(t, "urn:li:person:member-123", request["owner"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": map[string]any{
				"asset": "urn:li:digitalmediaAsset:abc",
				"uploadMechanism": map[string]any{
					"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest": map[string]any{
						"uploadUrl": server.URL + "/upload",
					},
				},
			},
		})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		uploadedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		var post map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))

		content := post["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
		assert.Equal(t, "IMAGE", content["shareMediaCategory"])

		mediaRefs := content["media"].([]any)
		require.Len(t, mediaRefs, 1)
		ref := mediaRefs[0].(map[string]any)
		assert.Equal(t, "READY", ref["status"])
		assert.Equal(t, "urn:li:digitalmediaAsset:abc", ref["media"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "urn:li:ugcPost:1000"})
	})

	provider := New(Config{
		AssetsURL: server.URL + "/assets",
		PostsURL:  server.URL + "/posts",
	})

	result := provider.Publish(context.Background(), "access-token", "member-123", "with image", []platform.Media{
		{Data: []byte("png-bytes"), MimeType: "image/png", Filename: "pic.png"},
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "urn:li:ugcPost:1000", result.ID)
	assert.Equal(t, []byte("png-bytes"), uploadedBody)
}

func TestProviderPublishAPIErrorFoldedIntoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Invalid access token"})
	}))
	defer server.Close()

	provider := New(Config{PostsURL: server.URL})

	result := provider.Publish(context.Background(), "bad-token", "member-123", "hello", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid access token")
}
