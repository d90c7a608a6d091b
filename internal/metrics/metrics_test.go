package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/killfeed/internal/delivery"
	pebblestore "github.com/rzbill/killfeed/internal/storage/pebble"
)

var (
	_ delivery.Observer       = (*Metrics)(nil)
	_ pebblestore.MetricsHook = (*Metrics)(nil)
)

func TestObservePoll(t *testing.T) {
	m := New()
	m.ObservePoll("redisq", delivery.OutcomeDelivered, 10*time.Millisecond, "")
	m.ObservePoll("redisq", delivery.OutcomeEmpty, time.Second, "")
	m.ObservePoll("stream", delivery.OutcomeError, time.Second, delivery.StageSource)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues("redisq", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues("redisq", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollErrors.WithLabelValues("stream", "source")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pollErrors.WithLabelValues("redisq", "source")))
}

func TestStorageHooks(t *testing.T) {
	m := New()
	m.ObserveRead(time.Microsecond, 100)
	m.ObserveBatchCommit(time.Millisecond, 3, 256)
	assert.Equal(t, 100.0, testutil.ToFloat64(m.storageReadBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storageCommitOps))
	assert.Equal(t, 256.0, testutil.ToFloat64(m.storageCommitBytes))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetLastRecordID(77)
	m.CursorsSwept(2)
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"killfeed_source_last_record_id 77",
		"killfeed_cursor_swept_total 2",
		"killfeed_http_rate_limited_total 1",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
