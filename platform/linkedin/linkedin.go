// Package linkedin implements the LinkedIn OAuth2 connect and publish adapter.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/platform"
)

const (
	defaultAuthURL     = "https://www.linkedin.com/oauth/v2/authorization"
	defaultTokenURL    = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultUserInfoURL = "https://api.linkedin.com/v2/userinfo"
	defaultAssetsURL   = "https://api.linkedin.com/v2/assets"
	defaultPostsURL    = "https://api.linkedin.com/v2/ugcPosts"

	restliProtocolVersion = "2.0.0"
)

// Config holds LinkedIn OAuth and API configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	AssetsURL   string
	PostsURL    string

	HTTPClient *http.Client
}

// DefaultScopes returns the scopes needed to author member posts.
func DefaultScopes() []string {
	return []string{"openid", "profile", "w_member_social"}
}

// Provider implements connect and publish against the LinkedIn API.
type Provider struct {
	config     Config
	httpClient *http.Client
}

// New creates a new LinkedIn provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if cfg.AssetsURL == "" {
		cfg.AssetsURL = defaultAssetsURL
	}
	if cfg.PostsURL == "" {
		cfg.PostsURL = defaultPostsURL
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
	return "linkedin"
}

// Token is an OAuth2 token response from LinkedIn.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is the subset of the userinfo response the system needs.
type Profile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthCodeURL returns the authorization URL to redirect the user to.
// The state token must be carried for CSRF protection.
func (p *Provider) AuthCodeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.CallbackURL},
		"scope":         {strings.Join(p.config.Scopes, " ")},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*Token, error) {
	return p.tokenRequest(ctx, "exchange", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.CallbackURL},
	})
}

// Refresh obtains a new access token from a refresh token. LinkedIn may omit
// a new refresh token; callers retain the old one in that case.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	return p.tokenRequest(ctx, "refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
	})
}

func (p *Provider) tokenRequest(ctx context.Context, operation string, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, providerError(operation, resp.StatusCode, "invalid_response", "failed to decode token response", err, nil)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return nil, providerError(operation, resp.StatusCode, tokenResp.Error, tokenResp.ErrorDesc, nil, tokenResp.errorMetadata())
	}
	if tokenResp.AccessToken == "" {
		return nil, providerError(operation, resp.StatusCode, "missing_access_token", "missing access token", nil, nil)
	}

	return &Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// UserInfo resolves the member identifier needed to author posts.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

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
		return nil, providerError("user_info", resp.StatusCode, "", apiErrorMessage(body), nil, nil)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode userinfo response", err, nil)
	}
	if profile.Sub == "" {
		return nil, providerError("user_info", resp.StatusCode, "missing_sub", "userinfo response missing member id", nil, nil)
	}

	return &profile, nil
}

// Publish creates a member post, uploading any image attachments first.
// Every failure mode is folded into the returned Result.
func (p *Provider) Publish(ctx context.Context, accessToken, personID, text string, media []platform.Media) platform.Result {
	if personID == "" {
		profile, err := p.UserInfo(ctx, accessToken)
		if err != nil {
			return platform.Failure("profile fetch failed: %v", err)
		}
		personID = profile.Sub
	}

	author := "urn:li:person:" + personID

	var assets []string
	for _, m := range media {
		asset, err := p.uploadImage(ctx, accessToken, author, m)
		if err != nil {
			return platform.Failure("media upload failed: %v", err)
		}
		assets = append(assets, asset)
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": text},
		"shareMediaCategory": "NONE",
	}
	if len(assets) > 0 {
		shareContent["shareMediaCategory"] = "IMAGE"
		mediaRefs := make([]map[string]any, 0, len(assets))
		for _, asset := range assets {
			mediaRefs = append(mediaRefs, map[string]any{
				"status": "READY",
				"media":  asset,
			})
		}
		shareContent["media"] = mediaRefs
	}

	post := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(post)
	if err != nil {
		return platform.Failure("failed to encode post: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.PostsURL, bytes.NewReader(payload))
	if err != nil {
		return platform.Failure("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return platform.Failure("post request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return platform.Failure("failed to read post response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return platform.Failure("%s", apiErrorMessage(body))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return platform.Failure("failed to decode post response: %v", err)
	}

	return platform.Success(created.ID)
}

// uploadImage runs the two-step registration + binary PUT protocol and
// returns the opaque asset URN.
func (p *Provider) uploadImage(ctx context.Context, accessToken, owner string, m platform.Media) (string, error) {
	register := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]any{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}

	payload, err := json.Marshal(register)
	if err != nil {
		return "", err
	}

	registerURL := p.config.AssetsURL + "?action=registerUpload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registerURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", providerError("register_upload", resp.StatusCode, "", apiErrorMessage(body), nil, nil)
	}

	var registered registerUploadResponse
	if err := json.Unmarshal(body, &registered); err != nil {
		return "", providerError("register_upload", resp.StatusCode, "invalid_response", "failed to decode upload registration", err, nil)
	}

	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	if uploadURL == "" || registered.Value.Asset == "" {
		return "", providerError("register_upload", resp.StatusCode, "missing_upload_target", "upload registration missing url or asset", nil, nil)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(m.Data))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Authorization", "Bearer "+accessToken)
	putReq.Header.Set("Content-Type", m.MimeType)

	putResp, err := p.httpClient.Do(putReq)
	if err != nil {
		return "", err
	}
	defer putResp.Body.Close()

	if putResp.StatusCode < 200 || putResp.StatusCode >= 300 {
		putBody, _ := io.ReadAll(putResp.Body)
		return "", providerError("upload", putResp.StatusCode, "", apiErrorMessage(putBody), nil, nil)
	}

	return registered.Value.Asset, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r tokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	return meta
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			MediaUploadHTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type apiError struct {
	Message string `json:"message"`
}

func apiErrorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "linkedin request failed"
	}

	return msg
}

func providerError(operation string, status int, code, description string, err error, raw map[string]any) *platform.ProviderError {
	return &platform.ProviderError{
		Provider:    "linkedin",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
