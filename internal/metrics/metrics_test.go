package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRegistry_MetricNamesShareNamespace(t *testing.T) {
	reg := NewRegistry()
	reg.httpRequestsTotal.WithLabelValues("GET", "GET /api/health", "200").Inc()
	reg.httpRequestDuration.WithLabelValues("GET", "GET /api/health").Observe(0.01)
	reg.RecordAnalysis("BTCUSDT", "intraday", "LONG", 20, 0.001)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range mfs {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") {
			continue
		}
		names = append(names, name)
		assert.True(t, strings.HasPrefix(name, "confluence_"), name)
	}
	assert.Contains(t, names, "confluence_http_requests_total")
	assert.Contains(t, names, "confluence_http_request_duration_seconds")
	assert.Contains(t, names, "confluence_http_requests_in_flight")
}

func TestRegistry_RecordAnalysis(t *testing.T) {
	reg := NewRegistry()
	reg.RecordAnalysis("BTCUSDT", "intraday", "LONG", 42, 0.002)
	reg.RecordAnalysis("BTCUSDT", "intraday", "LONG", 18, 0.001)
	reg.RecordAnalysis("", "swing", "NEUTRAL", 0, 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.analysesTotal.WithLabelValues("intraday", "LONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.analysesTotal.WithLabelValues("swing", "NEUTRAL")))
	assert.Equal(t, 18.0, testutil.ToFloat64(reg.analysisScore.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.analysisScore))
}

func TestRegistry_Backtests(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("success", 1.2)
	reg.RecordBacktest("failed", 0.1)
	reg.RecordTrades(map[string]int{"Stop Loss": 3, "Final Target": 2})
	reg.RecordTrades(map[string]int{"Stop Loss": 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.tradesClosed.WithLabelValues("Stop Loss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.tradesClosed.WithLabelValues("Final Target")))
}

func TestRegistry_MonitorMetrics(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBiasChange("ETHUSDT", "SHORT")
	reg.RecordReconnect("ETHUSDT")
	reg.RecordReconnect("ETHUSDT")
	reg.SetJobsActive("backtest", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.biasChanges.WithLabelValues("ETHUSDT", "SHORT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.streamReconnects.WithLabelValues("ETHUSDT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.jobsActive.WithLabelValues("backtest")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var reg *Registry
	assert.NotPanics(t, func() {
		reg.RecordAnalysis("X", "p", "LONG", 1, 1)
		reg.RecordBacktest("success", 1)
		reg.RecordTrades(map[string]int{"End": 1})
		reg.RecordBiasChange("X", "LONG")
		reg.RecordReconnect("X")
		reg.SetJobsActive("backtest", 1)
		reg.RecordRequest("GET", "/", 200, 0)
		reg.InFlightInc()
		reg.InFlightDec()
	})
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusToString(tt.status))
	}
}
