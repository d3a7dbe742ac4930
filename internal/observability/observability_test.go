package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	prov, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, prov)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, WrapHandler(h, nil))
}

func TestInitExposesCrawlMetrics(t *testing.T) {
	ctx := context.Background()
	prov, err := Init(ctx, Config{Enabled: true, Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, prov)
	defer func() { _ = prov.Shutdown(ctx) }()

	spanCtx, span := StartPageSpan(ctx, PageSpanInfo{JobID: "job-1", URL: "https://example.com/"})
	assert.NotNil(t, spanCtx)
	span.End()

	RecordPage(ctx, PageMetrics{JobID: "job-1", Outcome: "extracted", Duration: 15 * time.Millisecond})
	RecordProbe(ctx, ProbeMetrics{JobID: "job-1", Outcome: "ok", Duration: 3 * time.Millisecond})

	rec := httptest.NewRecorder()
	prov.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "crawler_page_total")
	assert.Contains(t, string(body), "crawler_probe_total")
}

func TestRecordWithoutInitIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordPage(context.Background(), PageMetrics{Outcome: "failed"})
		RecordProbe(context.Background(), ProbeMetrics{Outcome: "unreachable"})
	})
}
