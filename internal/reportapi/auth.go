package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// refreshSkew renews a token this long before it expires.
	refreshSkew     = 30 * time.Second
	defaultTokenTTL = 15 * time.Minute
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// authorize returns a usable bearer token, logging in when there is none or
// it is about to expire. An empty token means the API is called
// anonymously.
func (c *Client) authorize(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.static {
		return c.token, nil
	}
	if c.username == "" {
		return "", nil
	}
	if c.token != "" && c.now().Add(refreshSkew).Before(c.expiresAt) {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = tokenExpiry(token, c.now().Add(defaultTokenTTL))
	c.logger.Debug("report api login succeeded", "expires_at", c.expiresAt)
	return token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp loginResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	token := orDefault(resp.Token, resp.AccessToken)
	if token == "" {
		return "", &APIError{Message: "login response carried no token"}
	}
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// upstream verifies its own tokens.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}
