package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"

	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/engine"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
	"github.com/irontracks/musclemap/internal/litestore"
	"github.com/irontracks/musclemap/internal/metrics"
	"github.com/irontracks/musclemap/internal/muscle"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubEngine struct {
	userID int
	week   engine.WeekRequest
	names  []string
	err    error
	panic  bool
}

func (e *stubEngine) Week(_ context.Context, userID int, req engine.WeekRequest) (*engine.WeekResult, error) {
	if e.panic {
		panic("boom")
	}
	e.userID, e.week = userID, req
	if e.err != nil {
		return nil, e.err
	}
	return &engine.WeekResult{OK: true, WeekStartDate: "2025-03-10"}, nil
}

func (e *stubEngine) Day(_ context.Context, userID int, req engine.DayRequest) (*engine.DayResult, error) {
	e.userID = userID
	if req.Date == "" {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", engine.ErrInvalidInput)
	}
	return &engine.DayResult{OK: true, Date: req.Date}, nil
}

func (e *stubEngine) Classify(_ context.Context, userID int, names []string) (*engine.ClassifyResult, error) {
	e.userID, e.names = userID, names
	return &engine.ClassifyResult{OK: true}, nil
}

func (e *stubEngine) Backfill(_ context.Context, userID int, _ engine.BackfillRequest) (*engine.BackfillResult, error) {
	e.userID = userID
	return &engine.BackfillResult{OK: true, Days: 365}, nil
}

type stubUsers map[string]int

func (u stubUsers) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	if id, ok := u[login]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown login %q", login)
}

type stubWhoIs struct{ login string }

func (s stubWhoIs) WhoIs(context.Context, string) (*apitype.WhoIsResponse, error) {
	if s.login == "" {
		return nil, fmt.Errorf("peer not found")
	}
	return &apitype.WhoIsResponse{UserProfile: &tailcfg.UserProfile{LoginName: s.login, DisplayName: "Alice"}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWeekRoute(t *testing.T) {
	eng := &stubEngine{}
	s := New(eng, stubUsers{}, nil, Options{AuthMode: config.AuthDev}, discard)

	rec := do(t, s, http.MethodPost, "/api/v1/muscle-map/week", `{"weekStart":"2025-03-12","refresh":true,"refreshAi":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, eng.userID)
	assert.Equal(t, engine.WeekRequest{WeekStart: "2025-03-12", Refresh: true, RefreshAI: true}, eng.week)
	assert.Contains(t, rec.Body.String(), `"weekStartDate":"2025-03-10"`)

	// empty body is an empty request
	rec = do(t, s, http.MethodPost, "/api/v1/muscle-map/week", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/muscle-map/week", `{"weekStart":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	eng := &stubEngine{err: fmt.Errorf("loading week sessions: %w", context.DeadlineExceeded)}
	s := New(eng, stubUsers{}, nil, Options{AuthMode: config.AuthDev}, discard)

	rec := do(t, s, http.MethodPost, "/api/v1/muscle-map/week", "{}", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"internal error"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/muscle-map/day", "{}", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

func TestJWTIdentity(t *testing.T) {
	secret := "s3cret"
	eng := &stubEngine{}
	s := New(eng, stubUsers{"ana@example.com": 7}, nil, Options{AuthMode: config.AuthJWT, JWTSecret: secret}, discard)

	sign := func(key string, claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return "Bearer " + tok
	}
	valid := jwt.MapClaims{"sub": "ana@example.com", "name": "Ana", "exp": time.Now().Add(time.Hour).Unix()}

	rec := do(t, s, http.MethodPost, "/api/v1/exercise-muscle-map", `{"names":["Supino"]}`,
		map[string]string{"Authorization": sign(secret, valid)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, eng.userID)
	assert.Equal(t, []string{"Supino"}, eng.names)

	rec = do(t, s, http.MethodGet, "/api/v1/me", "", map[string]string{"Authorization": sign(secret, valid)})
	assert.JSONEq(t, `{"login":"ana@example.com","display_name":"Ana"}`, rec.Body.String())

	tests := map[string]string{
		"missing":    "",
		"wrong key":  sign("other", valid),
		"expired":    sign(secret, jwt.MapClaims{"sub": "ana@example.com", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no subject": sign(secret, jwt.MapClaims{"name": "Ana"}),
	}
	for name, auth := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/muscle-map/week", "{}", map[string]string{"Authorization": auth})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestTailscaleIdentity(t *testing.T) {
	eng := &stubEngine{}
	s := New(eng, stubUsers{"alice@example.com": 3}, nil, Options{AuthMode: config.AuthTailscale}, discard)

	// no client yet
	rec := do(t, s, http.MethodPost, "/api/v1/exercise-muscle-map/backfill", "{}", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.SetTailscale(stubWhoIs{login: "alice@example.com"})
	rec = do(t, s, http.MethodPost, "/api/v1/exercise-muscle-map/backfill", "{}", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, eng.userID)

	s.SetTailscale(stubWhoIs{login: "mallory@example.com"})
	rec = do(t, s, http.MethodPost, "/api/v1/exercise-muscle-map/backfill", "{}", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	mm, reg := metrics.NewTestManagerAndRegistry()
	s := New(&stubEngine{}, stubUsers{}, nil, Options{AuthMode: config.AuthJWT, JWTSecret: "x", Metrics: mm, Gatherer: reg}, discard)

	rec := do(t, s, http.MethodGet, "/api/v1/muscles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		OK      bool           `json:"ok"`
		Muscles []muscle.Group `json:"muscles"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.OK)
	assert.Equal(t, muscle.Groups, body.Muscles)

	rec = do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "musclemap_test_request")
	assert.Equal(t, 3.0, testutil.ToFloat64(mm.CounterRequests.WithLabelValues(http.MethodGet, "200")))
}

func TestPanicRecovery(t *testing.T) {
	mm := metrics.NewTestManager()
	s := New(&stubEngine{panic: true}, stubUsers{}, nil, Options{AuthMode: config.AuthDev, Metrics: mm}, discard)

	rec := do(t, s, http.MethodPost, "/api/v1/muscle-map/week", "{}", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.CounterHandlerPanics))
}

const pushCSV = `"Push";"2025-03-11 18:30 h";"1:05 hr"
"1. Bench Press · Barbell · 8 reps";"WU1 · 40 kg · 10 reps"
#;KG;REPS;RIR
1;80;8;2
2;80;8;1
3;80;7;0
`

// TestIngestThenWeek runs an import and a weekly aggregation against a real
// store.
func TestIngestThenWeek(t *testing.T) {
	ctx := context.Background()
	store, err := litestore.Open(ctx, filepath.Join(t.TempDir(), "musclemap.db"))
	require.NoError(t, err)
	defer store.Close()

	eng := engine.New(store, discard, engine.Options{})
	eng.Now = func() time.Time { return time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC) }
	s := New(eng, store, alpha.NewProvider(store, nil, discard), Options{AuthMode: config.AuthDev, APIKey: "k"}, discard)

	rec := do(t, s, http.MethodPost, "/api/v1/ingest/alpha", pushCSV, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/ingest/alpha", pushCSV, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/ingest/alpha", pushCSV, map[string]string{"X-API-Key": "k"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"sessions_received":1,"workouts_inserted":1,"workouts_updated":0,"sets_received":4}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/muscle-map/week", "{}", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var week engine.WeekResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&week))
	assert.Equal(t, 1, week.WorkoutsCount)
	// three working sets at RIR 2, 1, 0 with bench press at 0.7 chest
	assert.Equal(t, 2.0, week.Muscles[muscle.Chest].Sets)
	assert.Zero(t, week.Diagnostics.EstimatedSetsUsed)
}
