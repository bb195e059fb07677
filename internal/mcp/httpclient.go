package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/irontracks/musclemap/internal/engine"
)

// HTTPClient implements DataSource by calling the musclemap REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server. The user is whoever the server resolves
// from the connection or the bearer token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. token,
// when set, is sent as a bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// AI refreshes can take a while server side
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("httpclient: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", engine.ErrInvalidInput, errorMessage(body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, errorMessage(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts the "error" field of an error body, or returns the
// body as is.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *HTTPClient) Week(ctx context.Context, _ int, req engine.WeekRequest) (*engine.WeekResult, error) {
	var out engine.WeekResult
	if err := c.post(ctx, "/api/v1/muscle-map/week", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Day(ctx context.Context, _ int, req engine.DayRequest) (*engine.DayResult, error) {
	var out engine.DayResult
	if err := c.post(ctx, "/api/v1/muscle-map/day", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Classify(ctx context.Context, _ int, names []string) (*engine.ClassifyResult, error) {
	var out engine.ClassifyResult
	in := struct {
		Names []string `json:"names"`
	}{names}
	if err := c.post(ctx, "/api/v1/exercise-muscle-map", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
