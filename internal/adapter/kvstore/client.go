// Package kvstore is a client for the optional tertiary cache tier: a plain
// HTTP key-value service that stores JSON documents under a path key.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
)

// Client talks to a KV service exposing GET, PUT and DELETE on /geocode/{key}.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty token sends no Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Get(ctx context.Context, key string) (domain.CachedGeocode, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.keyURL(key), nil)
	if err != nil {
		return domain.CachedGeocode{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.CachedGeocode{}, false, nil
	default:
		return domain.CachedGeocode{}, false, statusError(resp)
	}

	var v domain.CachedGeocode
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return domain.CachedGeocode{}, false, fmt.Errorf("decode response: %w", err)
	}
	return v, true, nil
}

func (c *Client) Set(ctx context.Context, key string, v domain.CachedGeocode, ttl time.Duration) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	u := c.keyURL(key)
	if ttl > 0 {
		u += "?" + url.Values{"ttl": {strconv.Itoa(int(ttl.Seconds()))}}.Encode()
	}

	resp, err := c.do(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.keyURL(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return statusError(resp)
	}
	return nil
}

func (c *Client) keyURL(key string) string {
	return c.baseURL + "/geocode/" + url.PathEscape(key)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv %s request: %w", method, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("kv store error: status %d: %s", resp.StatusCode, body)
}
