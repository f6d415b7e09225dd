package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"messaging-service/internal/apperr"
)

// HTTPClient talks to the office-backend identity and directory endpoints.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs an HTTPClient with sane transport limits.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: tr, Timeout: timeout},
	}
}

// Verify resolves a bearer token into an identity.
func (c *HTTPClient) Verify(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/identity", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var ident Identity
	if err := c.doJSON(ctx, req, &ident); err != nil {
		return Identity{}, err
	}
	if ident.UserID == "" {
		return Identity{}, apperr.ErrUnauthorized
	}
	return ident, nil
}

// User fetches one directory entry.
func (c *HTTPClient) User(ctx context.Context, userID string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/internal/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return Identity{}, err
	}

	var ident Identity
	if err := c.doJSON(ctx, req, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// Users fetches multiple directory entries in one call.
func (c *HTTPClient) Users(ctx context.Context, userIDs []string) ([]Identity, error) {
	if len(userIDs) == 0 {
		return []Identity{}, nil
	}
	q := url.Values{"ids": []string{strings.Join(userIDs, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/internal/users?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Users []Identity `json:"users"`
	}
	if err := c.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// doJSON runs the request with exponential backoff on transport errors and
// 5xx responses, then decodes the body into dst.
func (c *HTTPClient) doJSON(ctx context.Context, req *http.Request, dst any) error {
	var resp *http.Response
	operation := func() error {
		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return fmt.Errorf("directory returned %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.ErrUnauthorized
	case http.StatusNotFound:
		return apperr.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var (
	_ TokenVerifier = (*HTTPClient)(nil)
	_ UserDirectory = (*HTTPClient)(nil)
)
