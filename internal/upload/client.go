package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/irontracks/musclemap/internal/ingest"
)

// ErrRejected reports that the server refused an export as malformed.
var ErrRejected = errors.New("export rejected")

// Client sends exports to the musclemap server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	token      string
	httpClient *http.Client
	// backoff is the wait before the first retry; it doubles per attempt.
	backoff time.Duration
}

// NewClient creates a new HTTP client for the musclemap server. token is
// sent as a bearer token when the server runs in JWT mode.
func NewClient(serverURL, apiKey, token string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		token:     token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendExport POSTs one CSV export to the Alpha ingest endpoint. Server errors
// and transport failures are retried up to 3 times with exponential backoff;
// any 4xx response fails at once.
func (c *Client) SendExport(ctx context.Context, csv []byte) (*ingest.Result, error) {
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		res, retry, err := c.send(ctx, csv)
		if err == nil {
			return res, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) send(ctx context.Context, csv []byte) (*ingest.Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/ingest/alpha", bytes.NewReader(csv))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-API-Key", c.apiKey)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusBadRequest {
		return nil, false, fmt.Errorf("%w: %s", ErrRejected, bytes.TrimSpace(body))
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ingest failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
		return nil, resp.StatusCode >= 500, err
	}

	var res ingest.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, false, fmt.Errorf("decoding ingest result: %w", err)
	}
	return &res, false, nil
}
