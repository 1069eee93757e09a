// Package remote implements the HTTP client for the translation
// management service. The service exposes two operations: upload the
// source-locale strings, and download the current translations for all
// locales.
//
// Calls are single-shot: any network or HTTP failure is returned to the
// caller as a fatal error. There is no retry or backoff policy in this
// pipeline — a failed run surfaces as a failed run.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single service call.
const DefaultTimeout = 60 * time.Second

// Client talks to one project on the translation service.
type Client struct {
	// BaseURL is the service API root, without a trailing slash.
	BaseURL string
	// Project is the service-side project identifier.
	Project string
	// Token authenticates every request. It is sent as a bearer token
	// and never logged.
	Token string

	// HTTPClient is used for all requests. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client
}

// NewClient builds a client for the given project.
func NewClient(baseURL, project, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Project:    project,
		Token:      token,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// uploadRequest is the upload payload.
type uploadRequest struct {
	Locale  string            `json:"locale"`
	Format  string            `json:"format"`
	Strings map[string]string `json:"strings"`
}

// localeResult is one locale's entry in the download response.
type localeResult struct {
	LanguageCode string            `json:"language_code"`
	Translations map[string]string `json:"translations"`
}

// downloadResponse is the download payload.
type downloadResponse struct {
	Results []localeResult `json:"results"`
}

// Upload sends the source-locale strings to the service. The strings
// map uses flattened dotted keys.
func (c *Client) Upload(ctx context.Context, locale string, entries map[string]string) error {
	body, err := json.Marshal(uploadRequest{
		Locale:  locale,
		Format:  "json",
		Strings: entries,
	})
	if err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/projects/%s/upload", c.BaseURL, c.Project)
	if _, err := c.do(ctx, http.MethodPost, endpoint, body); err != nil {
		return fmt.Errorf("uploading %s: %w", locale, err)
	}
	return nil
}

// DownloadAll fetches the current translations for every locale the
// service knows about. The result maps locale code to flattened
// key/value strings.
func (c *Client) DownloadAll(ctx context.Context) (map[string]map[string]string, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/translations", c.BaseURL, c.Project)
	respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading translations: %w", err)
	}

	var resp downloadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding translations response: %w", err)
	}

	out := make(map[string]map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		if r.LanguageCode == "" {
			return nil, fmt.Errorf("translations response entry missing language_code")
		}
		out[r.LanguageCode] = r.Translations
	}
	return out, nil
}

// do performs one request. Exactly one attempt; the caller decides what
// a failure means.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("service rejected the credential (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("service rate limit exceeded (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	return respBody, nil
}

// truncate shortens a string for error messages.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
