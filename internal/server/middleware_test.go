package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irontracks/musclemap/internal/metrics"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "guess", http.StatusForbidden},
		{"prefix of the key", "secret", "secre", http.StatusForbidden},
		{"correct", "secret", "secret", http.StatusOK},
		{"no key configured", "", "anything", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.configured)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/alpha", nil)
			if tt.sent != "" {
				req.Header.Set("X-API-Key", tt.sent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestJWTIdentityMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	users := stubUsers{"ana@example.com": 7}
	claims := func(sub string, exp time.Duration) jwt.MapClaims {
		return jwt.MapClaims{"sub": sub, "name": "Ana", "exp": time.Now().Add(exp).Unix()}
	}
	hs256 := func(key []byte, c jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
		require.NoError(t, err)
		return "Bearer " + tok
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims("ana@example.com", time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", hs256(secret, claims("ana@example.com", time.Hour)), http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic YW5hOnB3", http.StatusUnauthorized},
		{"alg none", "Bearer " + unsigned, http.StatusUnauthorized},
		{"other secret", hs256([]byte("other"), claims("ana@example.com", time.Hour)), http.StatusUnauthorized},
		{"expired", hs256(secret, claims("ana@example.com", -time.Minute)), http.StatusUnauthorized},
		{"no subject", hs256(secret, claims("", time.Hour)), http.StatusUnauthorized},
		{"unknown user", hs256(secret, claims("bia@example.com", time.Hour)), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int
			var gotInfo UserInfo
			h := JWTIdentity(secret, users, discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, gotInfo = userIDFromContext(r), userInfoFromContext(r)
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, 7, gotID)
				assert.Equal(t, UserInfo{Login: "ana@example.com", DisplayName: "Ana"}, gotInfo)
			} else {
				assert.Zero(t, gotID)
			}
		})
	}
}

func TestDevIdentitySetsLocalUser(t *testing.T) {
	var gotID int
	var gotInfo UserInfo
	h := DevIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotInfo = userIDFromContext(r), userInfoFromContext(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1, gotID)
	assert.Equal(t, devUser, gotInfo)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	m := metrics.NewTestManager()
	h := PanicRecovery(m, discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/muscle-map/week", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"internal error"}`, rec.Body.String())
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterHandlerPanics))

	// nil metrics still recover
	h = PanicRecovery(nil, discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPanicRecoveryKeepsAbort(t *testing.T) {
	m := metrics.NewTestManager()
	h := PanicRecovery(m, discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Zero(t, testutil.ToFloat64(m.CounterHandlerPanics))
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.NewTestManager()
	r := chi.NewRouter()
	r.Use(RequestMetrics(m))
	r.Get("/days/{date}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/health", okHandler)

	for _, path := range []string{"/days/2025-03-10", "/days/2025-03-11", "/health", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterRequests.WithLabelValues(http.MethodGet, "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRequests.WithLabelValues(http.MethodGet, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRequests.WithLabelValues(http.MethodGet, "404")))
	// one series per route pattern, never per concrete path
	assert.Equal(t, 3, testutil.CollectAndCount(m.HistogramRequestDuration))
	assert.Zero(t, testutil.ToFloat64(m.GaugeRequests))
}

func TestRequestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/muscle-map/day", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, buf.String(), `"status":201`)
	assert.Contains(t, buf.String(), `"path":"/api/v1/muscle-map/day"`)
	assert.Contains(t, buf.String(), `"method":"POST"`)
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/muscle-map/week", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
