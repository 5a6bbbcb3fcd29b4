// Package bluesky implements the Bluesky app-password connect and publish
// adapter against the AT Protocol XRPC API.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-crosspost/platform"
)

const (
	defaultServiceURL = "https://bsky.social"

	createSessionPath = "/xrpc/com.atproto.server.createSession"
	uploadBlobPath    = "/xrpc/com.atproto.repo.uploadBlob"
	createRecordPath  = "/xrpc/com.atproto.repo.createRecord"

	postCollection = "app.bsky.feed.post"
)

// Config holds Bluesky service configuration.
type Config struct {
	ServiceURL string
	HTTPClient *http.Client
}

// Provider implements connect and publish against a Bluesky PDS.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new Bluesky provider.
func New(cfg Config) *Provider {
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = defaultServiceURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		config:     cfg,
		httpClient: client,
	}
}

// Name returns the platform identifier.
func (p *Provider) Name() string {
	return "bluesky"
}

// Session is a short-lived authenticated session. ExpiresAt is derived from
// the accessJwt exp claim so callers can cache sessions later if the
// per-publish re-login ever becomes a bottleneck.
type Session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
	ExpiresAt time.Time
}

// Login exchanges a handle and app password for a session. A rejected login
// surfaces the platform's error message.
func (p *Provider) Login(ctx context.Context, handle, appPassword string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": handle,
		"password":   appPassword,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.ServiceURL+createSessionPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError("login", resp.StatusCode, "", xrpcErrorMessage(body), nil, nil)
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, providerError("login", resp.StatusCode, "invalid_response", "failed to decode session response", err, nil)
	}
	if session.AccessJwt == "" || session.DID == "" {
		return nil, providerError("login", resp.StatusCode, "invalid_session", "session response missing accessJwt or did", nil, nil)
	}

	session.ExpiresAt = jwtExpiry(session.AccessJwt)

	return &session, nil
}

// Publish re-authenticates, uploads any image attachments as blobs, and
// creates the post record. App-password login is cheap enough that sessions
// are not cached across publish calls.
func (p *Provider) Publish(ctx context.Context, handle, appPassword, text string, media []platform.Media) platform.Result {
	session, err := p.Login(ctx, handle, appPassword)
	if err != nil {
		return platform.Failure("login failed: %v", err)
	}

	var blobs []json.RawMessage
	for _, m := range media {
		blob, err := p.uploadBlob(ctx, session.AccessJwt, m)
		if err != nil {
			return platform.Failure("media upload failed: %v", err)
		}
		blobs = append(blobs, blob)
	}

	record := map[string]any{
		"$type":     postCollection,
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if len(blobs) > 0 {
		images := make([]map[string]any, 0, len(blobs))
		for _, blob := range blobs {
			images = append(images, map[string]any{
				"alt":   "",
				"image": blob,
			})
		}
		record["embed"] = map[string]any{
			"$type":  "app.bsky.embed.images",
			"images": images,
		}
	}

	payload, err := json.Marshal(map[string]any{
		"repo":       session.DID,
		"collection": postCollection,
		"record":     record,
	})
	if err != nil {
		return platform.Failure("failed to encode post: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.ServiceURL+createRecordPath, bytes.NewReader(payload))
	if err != nil {
		return platform.Failure("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.AccessJwt)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return platform.Failure("post request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return platform.Failure("failed to read post response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return platform.Failure("%s", xrpcErrorMessage(body))
	}

	var created struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return platform.Failure("failed to decode post response: %v", err)
	}

	return platform.Success(created.URI)
}

// uploadBlob sends one attachment and returns the blob reference verbatim so
// the embed block can carry it untouched.
func (p *Provider) uploadBlob(ctx context.Context, accessJwt string, m platform.Media) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.ServiceURL+uploadBlobPath, bytes.NewReader(m.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", m.MimeType)
	req.Header.Set("Authorization", "Bearer "+accessJwt)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError("upload_blob", resp.StatusCode, "", xrpcErrorMessage(body), nil, nil)
	}

	var uploaded struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, providerError("upload_blob", resp.StatusCode, "invalid_response", "failed to decode blob response", err, nil)
	}
	if len(uploaded.Blob) == 0 {
		return nil, providerError("upload_blob", resp.StatusCode, "missing_blob", "blob response missing blob reference", nil, nil)
	}

	return uploaded.Blob, nil
}

// jwtExpiry reads the exp claim without verifying the signature; the PDS
// signed the token, we only need the expiry for bookkeeping.
func jwtExpiry(accessJwt string) time.Time {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessJwt, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func xrpcErrorMessage(body []byte) string {
	var xerr xrpcError
	if err := json.Unmarshal(body, &xerr); err == nil {
		if xerr.Message != "" {
			return xerr.Message
		}
		if xerr.Error != "" {
			return xerr.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "bluesky request failed"
	}

	return msg
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *platform.ProviderError {
	return &platform.ProviderError{
		Provider:    "bluesky",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
