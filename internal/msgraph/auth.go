package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultScope     = "Calendars.Read offline_access"
	defaultAuthority = "https://login.microsoftonline.com"
)

// Auth handles the OAuth2 device code flow for Microsoft Graph and keeps the
// resulting tokens fresh.
type Auth struct {
	clientID   string
	tenantID   string
	authority  string
	tokens     *TokenStore
	httpClient *http.Client
	pollUnit   time.Duration
	logger     *slog.Logger
}

// NewAuth creates an Auth for the given Azure AD app. An empty tenantID means
// "common".
func NewAuth(clientID, tenantID string, tokens *TokenStore, logger *slog.Logger) *Auth {
	if tenantID == "" {
		tenantID = "common"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Auth{
		clientID:  clientID,
		tenantID:  tenantID,
		authority: defaultAuthority,
		tokens:    tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollUnit: time.Second,
		logger:   logger,
	}
}

// WithAuthority points the flow at another identity endpoint.
func (a *Auth) WithAuthority(u string) *Auth {
	a.authority = strings.TrimRight(u, "/")
	return a
}

// DeviceCodeResponse holds the response from the device code endpoint.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (t tokenResponse) data() *TokenData {
	return &TokenData{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		Scope:        t.Scope,
	}
}

func (a *Auth) endpoint(name string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/%s", a.authority, a.tenantID, name)
}

func (a *Auth) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

// Login runs the whole device code flow: it hands the user code to prompt,
// waits for the user to approve it and caches the tokens.
func (a *Auth) Login(ctx context.Context, prompt func(*DeviceCodeResponse)) error {
	dc, err := a.StartDeviceCodeFlow(ctx)
	if err != nil {
		return err
	}
	prompt(dc)

	tokens, err := a.PollForToken(ctx, dc.DeviceCode, dc.Interval)
	if err != nil {
		return err
	}
	return a.tokens.Save(tokens)
}

// StartDeviceCodeFlow initiates the device code flow and returns the user
// code and verification URI.
func (a *Auth) StartDeviceCodeFlow(ctx context.Context) (*DeviceCodeResponse, error) {
	body, status, err := a.postForm(ctx, a.endpoint("devicecode"), url.Values{
		"client_id": {a.clientID},
		"scope":     {defaultScope},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("device code request failed (status %d): %s", status, truncateStr(string(body), 200))
	}

	var dcResp DeviceCodeResponse
	if err := json.Unmarshal(body, &dcResp); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}

	return &dcResp, nil
}

// PollForToken polls the token endpoint every interval seconds until the
// user completes authorization.
func (a *Auth) PollForToken(ctx context.Context, deviceCode string, interval int) (*TokenData, error) {
	if interval < 1 {
		interval = 5
	}

	form := url.Values{
		"client_id":   {a.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(interval) * a.pollUnit):
		}

		body, _, err := a.postForm(ctx, a.endpoint("token"), form)
		if err != nil {
			return nil, fmt.Errorf("polling for token: %w", err)
		}

		var tokenResp tokenResponse
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return nil, fmt.Errorf("parsing token response: %w", err)
		}

		switch tokenResp.Error {
		case "":
			return tokenResp.data(), nil
		case "authorization_pending":
			a.logger.Debug("waiting for user authorization")
		case "slow_down":
			interval += 5
			a.logger.Debug("slowing down polling", "interval", interval)
		case "expired_token":
			return nil, fmt.Errorf("device code expired, please try again")
		default:
			return nil, fmt.Errorf("token error: %s: %s", tokenResp.Error, tokenResp.ErrorDesc)
		}
	}
}

// RefreshAccessToken uses a refresh token to obtain a new access token.
func (a *Auth) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenData, error) {
	body, _, err := a.postForm(ctx, a.endpoint("token"), url.Values{
		"client_id":     {a.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {defaultScope},
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if tokenResp.Error != "" {
		return nil, fmt.Errorf("refresh failed: %s: %s", tokenResp.Error, tokenResp.ErrorDesc)
	}

	return tokenResp.data(), nil
}

// EnsureValidToken returns a valid access token, refreshing the cached one
// when it is about to expire.
func (a *Auth) EnsureValidToken(ctx context.Context) (string, error) {
	tokens, err := a.tokens.Load()
	if err != nil {
		return "", fmt.Errorf("loading cached tokens: %w", err)
	}
	if tokens == nil {
		return "", fmt.Errorf("not authenticated with Microsoft Graph: run 'dayscore calendar auth' first")
	}

	if !tokens.IsExpired() {
		return tokens.AccessToken, nil
	}

	a.logger.Debug("access token expired, refreshing")
	newTokens, err := a.RefreshAccessToken(ctx, tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh failed (run 'dayscore calendar auth' to re-authenticate): %w", err)
	}
	if newTokens.RefreshToken == "" {
		newTokens.RefreshToken = tokens.RefreshToken
	}

	if err := a.tokens.Save(newTokens); err != nil {
		a.logger.Warn("failed to cache refreshed tokens", "error", err)
	}

	return newTokens.AccessToken, nil
}
