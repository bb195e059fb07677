package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections to the httptest servers
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"prose around", `Claro! {"items":[]} Espero ter ajudado {x}`, `{"items":[]}`, true},
		{"brace in string", `resposta: {"notes":"use } com cuidado","n":1} fim`, `{"notes":"use } com cuidado","n":1}`, true},
		{"escaped quote", `{"notes":"diz \"oi\" {"}`, `{"notes":"diz \"oi\" {"}`, true},
		{"invalid first block", `{nope} {"ok":true}`, `{"ok":true}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"empty", "   ", "", false},
		{"no object", `[1,2,3]`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusOK, StatusFor(nil))
	assert.Equal(t, StatusMissingAPIKey, StatusFor(ErrMissingAPIKey))
	assert.Equal(t, StatusRateLimited, StatusFor(fmt.Errorf("%w: quota", ErrRateLimited)))
	assert.Equal(t, StatusFailed, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, StatusFailed, StatusFor(errors.New("boom")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("  abc  ", 10))
	assert.Equal(t, "Recome", Truncate("Recomendação", 6))
	assert.Equal(t, "ção", Truncate("ção", 3))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "", time.Second)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func newGeminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "k" {
			t.Errorf("unexpected api key %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestGeminiComplete(t *testing.T) {
	ts := newGeminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"pensando","thought":true},{"text":"{\"items\":"},{"text":"[]}"}]}}]}`)
	defer ts.Close()

	g, err := NewGemini(context.Background(), "k", "test-model", 5*time.Second,
		WithBaseURL(ts.URL+"/"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "classifique")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, text)
	ts.Client().CloseIdleConnections()
}

func TestGeminiRateLimited(t *testing.T) {
	ts := newGeminiServer(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	defer ts.Close()

	g, err := NewGemini(context.Background(), "k", "models/test-model", 5*time.Second,
		WithBaseURL(ts.URL+"/"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, StatusRateLimited, StatusFor(err))
	ts.Client().CloseIdleConnections()
}

func TestGeminiEmptyCandidates(t *testing.T) {
	ts := newGeminiServer(t, http.StatusOK, `{"candidates":[]}`)
	defer ts.Close()

	g, err := NewGemini(context.Background(), "k", "test-model", 5*time.Second,
		WithBaseURL(ts.URL+"/"), WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	ts.Client().CloseIdleConnections()
}
