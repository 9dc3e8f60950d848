package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"consola.app/internal/auth"
)

const maxBodyBytes = 1 << 20

// Client talks JSON to the inventory backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client rooted at baseURL. hc should carry a Transport so that
// credentials are attached; a bare client is used when hc is nil.
func New(baseURL string, hc *http.Client) (*Client, error) {
	base, err := ParseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{base: base, http: hc}, nil
}

// ParseBase validates an absolute API base URL.
func ParseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host are required", raw)
	}
	return u, nil
}

// Base returns a copy of the API base URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// URL resolves path against the API base.
func (c *Client) URL(path string) string {
	return c.base.String() + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Do sends a JSON request. Non-2xx answers yield *APIError; transport failures
// wrap auth.ErrNetwork; undecodable 2xx bodies wrap auth.ErrMalformedResponse.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, header http.Header) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", auth.ErrNetwork, method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", auth.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(req, resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", auth.ErrMalformedResponse, method, req.URL.Path, err)
	}
	return nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.PostJSON(ctx, LoginPath, creds, &out)
	return out, err
}

// Me describes the principal behind the staged credential.
func (c *Client) Me(ctx context.Context) (auth.MeResponse, error) {
	var out auth.MeResponse
	err := c.GetJSON(ctx, "/auth/me", &out)
	return out, err
}

// Refresh rotates the staged credential.
func (c *Client) Refresh(ctx context.Context) (auth.TokenResponse, error) {
	var out auth.TokenResponse
	err := c.PostJSON(ctx, "/auth/refresh", struct{}{}, &out)
	return out, err
}

// Logout invalidates token on the backend. The token is passed explicitly
// because local state may already have been cleared.
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("logout: token is required")
	}
	h := http.Header{}
	h.Set(authHeader, bearerPrefix+token)
	return c.do(ctx, http.MethodPost, "/auth/logout", struct{}{}, nil, h)
}
