package metrics_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.FetchAttempt(metrics.FetchOK)
		m.ItemEmitted("s")
		m.ItemSuppressed("s")
		m.StubDropped("s", "fetch")
		m.OCRResult("ok")
		m.DedupError("seen")
		m.TriggerSkipped("s")
		m.RunStarted("s")()
	})
}

func TestMetrics_Registered(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ItemEmitted("bksy_ggtz")
	m.ItemEmitted("bksy_ggtz")
	m.RunStarted("bksy_ggtz")()

	count, err := testutil.GatherAndCount(reg, "notice_crawler_pipeline_items_emitted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)

	var emitted float64
	for _, mf := range families {
		if mf.GetName() == "notice_crawler_pipeline_items_emitted_total" {
			emitted = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.InDelta(t, 2, emitted, 0)
}
