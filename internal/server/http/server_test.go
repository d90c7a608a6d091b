package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/killfeed/internal/config"
	"github.com/rzbill/killfeed/internal/cursor"
	"github.com/rzbill/killfeed/internal/killmail"
	"github.com/rzbill/killfeed/internal/metrics"
	"github.com/rzbill/killfeed/internal/runtime"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

func newTestServer(t *testing.T, mutate func(*cfgpkg.Config)) (*Server, *runtime.Runtime) {
	t.Helper()
	return newTestServerWith(t, runtime.Options{}, mutate)
}

func newTestServerWith(t *testing.T, opts runtime.Options, mutate func(*cfgpkg.Config)) (*Server, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	opts.DataDir = t.TempDir()
	opts.Fsync = pebblestore.FsyncModeNever
	opts.Config = cfg
	opts.Metrics = metrics.New()
	rt, err := runtime.Open(opts)
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text", Outputs: []logpkg.OutputConfig{{Type: "null"}}})
	return New(rt, logger), rt
}

func seed(t *testing.T, rt *runtime.Runtime, ids ...int64) {
	t.Helper()
	kms := make([]killmail.Killmail, 0, len(ids))
	for _, id := range ids {
		kms = append(kms, killmail.Killmail{
			KillmailID:   id,
			KillmailHash: "hash",
			KillTime:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			SystemID:     30000142,
			TotalValue:   float64(id) * 1e6,
			Items:        []killmail.Item{{TypeID: 34, QtyDropped: 2, Value: 5}},
		})
	}
	_, err := rt.Source().Append(context.Background(), kms)
	require.NoError(t, err)
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := get(s, "/v1/healthz")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMissingQueueIDReturnsEmpty(t *testing.T) {
	s, rt := newTestServer(t, nil)
	seed(t, rt, 1)

	w := get(s, "/redisq")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"package":null}`, w.Body.String())

	w = get(s, "/stream?ttw=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"killmail":null}`, w.Body.String())
}

func TestRedisQDeliversInOrder(t *testing.T) {
	s, rt := newTestServer(t, nil)
	seed(t, rt, 500, 501)

	var body struct {
		Package *struct {
			KillID int64 `json:"killID"`
			ZKB    struct {
				DroppedValue float64 `json:"droppedValue"`
				Href         string  `json:"href"`
			} `json:"zkb"`
		} `json:"package"`
	}
	w := get(s, "/redisq?queueID=client-a&ttw=1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Package)
	assert.Equal(t, int64(501), body.Package.KillID)
	assert.Equal(t, 10.0, body.Package.ZKB.DroppedValue)
	assert.Equal(t, "https://esi.evetech.net/latest/killmails/501/hash/", body.Package.ZKB.Href)

	seed(t, rt, 502, 503)
	for _, want := range []int64{502, 503} {
		w = get(s, "/redisq?queueID=client-a&ttw=1")
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotNil(t, body.Package)
		assert.Equal(t, want, body.Package.KillID)
	}

	start := time.Now()
	w = get(s, "/redisq?queueID=client-a&ttw=1")
	elapsed := time.Since(start)
	assert.JSONEq(t, `{"package":null}`, w.Body.String())
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestStreamVerboseAndFilter(t *testing.T) {
	s, rt := newTestServer(t, nil)
	seed(t, rt, 10)

	w := get(s, "/stream?queueID=v&ttw=1")
	require.Equal(t, http.StatusOK, w.Code)
	var env map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	km := env["killmail"]
	require.NotNil(t, km)
	assert.Equal(t, 10.0, km["killmail_id"])
	assert.Equal(t, "", km["near"])
	assert.Equal(t, []any{}, km["attackers"])

	seed(t, rt, 11, 12, 13)
	w = get(s, "/stream?queueID=v&ttw=1&filter="+`killmail_id%20%3D%3D%2013`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env["killmail"])
	assert.Equal(t, 13.0, env["killmail"]["killmail_id"])
}

func TestStreamBadFilterReturnsEmpty(t *testing.T) {
	s, rt := newTestServer(t, nil)
	seed(t, rt, 1)
	w := get(s, "/stream?queueID=x&filter=%3D%3D%3D")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"killmail":null}`, w.Body.String())
}

func TestNonGetIsRejectedWithEmptyShape(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/redisq?queueID=a", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"package":null}`, w.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := get(s, "/v1/healthz")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/redisq", nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *cfgpkg.Config) {
		c.HTTP.RateLimit = cfgpkg.RateLimitConfig{RPS: 0.001, Burst: 1}
	})
	assert.Equal(t, http.StatusOK, get(s, "/v1/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/v1/healthz").Code)
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, get(s, "/v1/healthz").Code)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	s, rt := newTestServer(t, nil)
	seed(t, rt, 1, 2, 3)

	w := get(s, "/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"source":"pebble","cursor":"pebble","first_id":1,"last_id":3}`, w.Body.String())

	get(s, "/redisq")
	w = get(s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `killfeed_poll_errors_total{feed="redisq",stage="request"} 1`)
	assert.Contains(t, w.Body.String(), "killfeed_source_last_record_id 3")
}

func TestClientLimiterEvictsIdle(t *testing.T) {
	now := time.Unix(0, 0)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	now = now.Add(time.Hour)
	assert.True(t, l.allow("b"))
	_, ok := l.clients["a"]
	assert.False(t, ok)
}

// brokenSource fails every read.
type brokenSource struct{}

var errSourceDown = errors.New("source down")

func (brokenSource) Newest(context.Context) (*killmail.Record, error) { return nil, errSourceDown }
func (brokenSource) After(context.Context, uint64) (*killmail.Record, error) {
	return nil, errSourceDown
}
func (brokenSource) Before(context.Context, uint64) (*killmail.Record, error) {
	return nil, errSourceDown
}
func (brokenSource) Append(context.Context, []killmail.Killmail) ([]uint64, error) {
	return nil, errSourceDown
}

// brokenCursors fails every read and write.
type brokenCursors struct{}

func (brokenCursors) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cursor store down")
}
func (brokenCursors) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cursor store down")
}
func (brokenCursors) Close() error { return nil }

func TestFeedsAnswerEmptyWhenBackendsFail(t *testing.T) {
	tests := []struct {
		name  string
		opts  runtime.Options
		stage string
	}{
		{"source fails", runtime.Options{Source: brokenSource{}, Cursors: cursor.NewMemory()}, "source"},
		{"cursor store fails", runtime.Options{Cursors: brokenCursors{}}, "cursor_read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rt := newTestServerWith(t, tt.opts, nil)
			if tt.opts.Source == nil {
				seed(t, rt, 1, 2)
			}

			w := get(s, "/redisq?queueID=q&ttw=1")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"package":null}`, w.Body.String())

			w = get(s, "/stream?queueID=q&ttw=1")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"killmail":null}`, w.Body.String())

			w = get(s, "/metrics")
			assert.Contains(t, w.Body.String(), `killfeed_poll_errors_total{feed="redisq",stage="`+tt.stage+`"} 1`)
			assert.Contains(t, w.Body.String(), `killfeed_poll_errors_total{feed="stream",stage="`+tt.stage+`"} 1`)
		})
	}
}

func TestNonNumericTTWUsesConfiguredDefault(t *testing.T) {
	s, _ := newTestServer(t, func(c *cfgpkg.Config) { c.Poll.DefaultWait = 1 })
	start := time.Now()
	w := get(s, "/redisq?queueID=q&ttw=soon")
	elapsed := time.Since(start)
	assert.JSONEq(t, `{"package":null}`, w.Body.String())
	assert.Less(t, elapsed, 2*time.Second)
}
