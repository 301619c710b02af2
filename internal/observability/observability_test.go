package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- logger ---

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")

	logger.Debug("decoded", "file", "Z_RADR_I_Z9250.bin", "nsweeps", 9)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "Z_RADR_I_Z9250.bin", rec["file"])
	assert.InDelta(t, 9, rec["nsweeps"], 0)
}

func TestNewLogger_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("skip file", "error", "bad magic")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "skip file")
	assert.Contains(t, out, "error=\"bad magic\"")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

// --- metrics ---

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.DecodeErrors.WithLabelValues("SAB").Inc()
	a.RegistryCache.WithLabelValues("hit").Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(a.DecodeErrors.WithLabelValues("SAB")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(a.RegistryCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.DecodeErrors.WithLabelValues("SAB")), 0)
}
