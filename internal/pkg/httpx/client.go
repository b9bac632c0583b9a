// Package httpx holds the outbound HTTP plumbing shared by condition
// providers and notification channels.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/teleworker/internal/consts"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var userAgent = consts.AppName + "/" + consts.Version

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

// NewClient returns a client with the decoding transport and the given timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: NewDecodingTransport(nil),
	}
}

// GetText fetches url and returns the status code and the body, capped at
// 1 MiB. A non-2xx status is not an error here.
func GetText(ctx context.Context, client *http.Client, url string) (int, string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, string(raw), nil
}

// GetJSON fetches url and decodes a 2xx body into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	status, body, err := GetText(ctx, client, url)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{URL: url, Status: status, Body: Snippet(body)}
	}
	if err := sonic.UnmarshalString(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Snippet trims a response body down to something fit for a log line.
func Snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}
