package ipam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netbridge/netsync/pkg/errors"
)

// client is a thin wrapper over one http.Client talking to the IPAM REST
// API. The underlying transport is not assumed safe for concurrent use, so
// each load worker gets its own client instance (see Target.clientFor).
type client struct {
	http    *http.Client
	baseURL string
	token   string
	target  string
}

func newClient(baseURL, token, target string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		target:  target,
	}
}

// page is the envelope every list endpoint returns.
type page struct {
	Next    string            `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// listAll follows pagination until the last page and returns the raw
// result objects of every page.
func (c *client) listAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	endpoint := c.baseURL + path
	var results []json.RawMessage

	for endpoint != "" {
		var p page
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &p); err != nil {
			return nil, err
		}
		results = append(results, p.Results...)
		endpoint = p.Next
	}

	return results, nil
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, out)
}

func (c *client) patch(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPatch, c.baseURL+path, body, nil)
}

func (c *client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+path, nil, nil)
}

func (c *client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if _, err := url.Parse(endpoint); err != nil {
		return errors.NewValidationError("url", endpoint, err.Error())
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapAPI(c.target, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.NewAPIError(c.target, resp.StatusCode,
			fmt.Sprintf("%s %s: %s", method, endpoint, strings.TrimSpace(string(payload))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.WrapAPI(c.target, resp.StatusCode, err)
		}
	}
	return nil
}
