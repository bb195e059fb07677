package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/irontracks/musclemap/internal/engine"
	"github.com/irontracks/musclemap/internal/muscle"
)

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

type recordingSource struct {
	userID int
	week   engine.WeekRequest
	day    engine.DayRequest
	names  []string
}

func (s *recordingSource) Week(_ context.Context, userID int, req engine.WeekRequest) (*engine.WeekResult, error) {
	s.userID, s.week = userID, req
	return &engine.WeekResult{OK: true, WeekStartDate: "2025-03-10"}, nil
}

func (s *recordingSource) Day(_ context.Context, userID int, req engine.DayRequest) (*engine.DayResult, error) {
	s.userID, s.day = userID, req
	if req.Date == "bad" {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", engine.ErrInvalidInput)
	}
	return &engine.DayResult{OK: true, Date: req.Date}, nil
}

func (s *recordingSource) Classify(_ context.Context, userID int, names []string) (*engine.ClassifyResult, error) {
	s.userID, s.names = userID, names
	return nil, fmt.Errorf("store unavailable")
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestWeeklyVolumeTool verifies argument mapping and the JSON payload.
func TestWeeklyVolumeTool(t *testing.T) {
	src := &recordingSource{}
	h := newHandlers(src)

	res, err := h.weeklyVolume(WithUserID(context.Background(), 5), call(map[string]any{
		"week_start": "2025-03-12",
		"refresh_ai": true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res))
	}
	want := engine.WeekRequest{WeekStart: "2025-03-12", RefreshAI: true}
	if src.week != want || src.userID != 5 {
		t.Errorf("request = %+v user %d, want %+v user 5", src.week, src.userID, want)
	}

	var got engine.WeekResult
	if err := json.Unmarshal([]byte(text(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WeekStartDate != "2025-03-10" {
		t.Errorf("weekStartDate = %q", got.WeekStartDate)
	}
}

// TestDailyVolumeTool verifies the optional offset and invalid input.
func TestDailyVolumeTool(t *testing.T) {
	src := &recordingSource{}
	h := newHandlers(src)

	if _, err := h.dailyVolume(context.Background(), call(map[string]any{"date": "2025-03-11"})); err != nil {
		t.Fatal(err)
	}
	if src.day.TZOffsetMinutes != nil {
		t.Errorf("offset = %v, want nil", *src.day.TZOffsetMinutes)
	}

	if _, err := h.dailyVolume(context.Background(), call(map[string]any{"date": "2025-03-11", "tz_offset_minutes": 180.0})); err != nil {
		t.Fatal(err)
	}
	if src.day.TZOffsetMinutes == nil || *src.day.TZOffsetMinutes != 180 {
		t.Errorf("offset = %v, want 180", src.day.TZOffsetMinutes)
	}

	res, _ := h.dailyVolume(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Error("missing date should be a tool error")
	}
	res, _ = h.dailyVolume(context.Background(), call(map[string]any{"date": "bad"}))
	if !res.IsError {
		t.Error("invalid date should be a tool error")
	}
}

// TestClassifyTool verifies that data source failures become tool errors.
func TestClassifyTool(t *testing.T) {
	src := &recordingSource{}
	h := newHandlers(src)

	res, err := h.classifyExercises(context.Background(), call(map[string]any{"names": []any{"Supino", "Remada"}}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error")
	}
	if len(src.names) != 2 || src.names[1] != "Remada" {
		t.Errorf("names = %v", src.names)
	}
}

// TestMuscleCatalogResource verifies the catalog resource lists every group.
func TestMuscleCatalogResource(t *testing.T) {
	h := newHandlers(&recordingSource{})
	var req mcp.ReadResourceRequest
	req.Params.URI = "musclemap://muscle_catalog"

	contents, err := h.muscleCatalog(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	var groups []muscle.Group
	if err := json.Unmarshal([]byte(tc.Text), &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != len(muscle.Groups) {
		t.Errorf("groups = %d, want %d", len(groups), len(muscle.Groups))
	}
}

// TestNewRegistersTools verifies the server can be built over the HTTP client.
func TestNewRegistersTools(t *testing.T) {
	s := New(NewHTTPClient("http://localhost", ""), "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s == nil {
		t.Fatal("nil server")
	}
}
