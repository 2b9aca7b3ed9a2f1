package etsy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/autogenerations/printsync/internal/config"
	"go.uber.org/zap"
)

const tokenEndpoint = "https://api.etsy.com/v3/public/oauth/token"

// tokenSource manages the OAuth refresh-token rotation. The marketplace
// hands out a new refresh token with every access token, so the rotated
// pair is persisted to the secrets file between invocations.
type tokenSource struct {
	keystring   string
	secretsFile string
	http        *http.Client
	log         *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

type persistedSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func newTokenSource(cfg config.EtsyConfig, log *zap.Logger) *tokenSource {
	ts := &tokenSource{
		keystring:    cfg.Keystring,
		secretsFile:  cfg.SecretsFile,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          log.Named("etsy.oauth"),
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}
	// Tokens persisted by a previous run take precedence over the ones in
	// the environment, which go stale after the first rotation.
	if stored, err := ts.loadSecrets(); err == nil && stored.RefreshToken != "" {
		ts.accessToken = stored.AccessToken
		ts.refreshToken = stored.RefreshToken
	}
	return ts
}

// AccessToken returns a valid access token, refreshing when the cached one
// is expired or about to expire.
func (ts *tokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.accessToken != "" && time.Now().Add(time.Minute).Before(ts.expiresAt) {
		return ts.accessToken, nil
	}
	if err := ts.refresh(ctx); err != nil {
		return "", err
	}
	return ts.accessToken, nil
}

func (ts *tokenSource) refresh(ctx context.Context) error {
	if ts.refreshToken == "" {
		return fmt.Errorf("etsy: no refresh token available")
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("client_id", ts.keystring)
	values.Set("refresh_token", ts.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("etsy: token refresh failed with status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("etsy: decode token response: %w", err)
	}

	ts.accessToken = token.AccessToken
	ts.refreshToken = token.RefreshToken
	ts.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	if err := ts.saveSecrets(); err != nil {
		ts.log.Warn("persist rotated tokens", zap.Error(err))
	}
	return nil
}

func (ts *tokenSource) loadSecrets() (persistedSecrets, error) {
	var secrets persistedSecrets
	raw, err := os.ReadFile(ts.secretsFile)
	if err != nil {
		return secrets, err
	}
	err = json.Unmarshal(raw, &secrets)
	return secrets, err
}

func (ts *tokenSource) saveSecrets() error {
	raw, err := json.MarshalIndent(persistedSecrets{
		AccessToken:  ts.accessToken,
		RefreshToken: ts.refreshToken,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ts.secretsFile, raw, 0o600)
}
