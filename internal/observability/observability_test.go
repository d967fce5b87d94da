// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: &buf})
	articleLogger := WithArticle(WithKeyword(logger, "radiolysis"), "10.1/a", "openalex")
	articleLogger.Debug().Msg("processing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "radiolysis", entry["keyword"])
	assert.Equal(t, "10.1/a", entry["doi"])
	assert.Equal(t, "openalex", entry["source"])
	assert.Equal(t, "processing", entry["message"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: &buf})
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("harvester")
	m.SearchReturned("openalex", 3)
	m.SearchReturned("openalex", 2)
	m.SearchFailed("crossref")
	m.Article(OutcomeDownloaded)
	m.Strategy("direct", "failed")
	m.RateLimited()
	m.BackedOff(3100 * time.Millisecond)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.SearchRecords.WithLabelValues("openalex")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFailures.WithLabelValues("crossref")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArticlesProcessed.WithLabelValues(OutcomeDownloaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyOutcomes.WithLabelValues("direct", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MirrorRateLimited))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("harvester")
	b := NewMetrics("harvester")
	a.Article(OutcomeSkipped)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ArticlesProcessed.WithLabelValues(OutcomeSkipped)))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SearchReturned("x", 1)
		m.Article(OutcomeFailed)
		m.Strategy("mirror", "skipped")
		m.RateLimited()
		m.BackedOff(time.Second)
		assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics("harvester")
	m.Article(OutcomeFiltered)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `harvester_articles_processed_total{outcome="filtered"} 1`)
}
