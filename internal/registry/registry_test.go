package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const contentTypeJSON = "application/json"

var nanjing = Station{
	ID:        "9250",
	Name:      "Nanjing",
	Latitude:  32.19,
	Longitude: 118.70,
	Altitude:  144,
	Frequency: 2.8,
	DataType:  "SA",
}

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return NewClient(baseURL, 5*time.Second, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- StationID ---

func TestStationID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"standard name", "Z_RADR_I_Z9250_20200601000000_O_DOR_SA_CAP.bin.bz2", "9250", true},
		{"directory ignored", "/data/2024/Z9010/Z_RADR_I_Z9531_x.bin", "9531", true},
		{"short runs skipped", "A12B345C6789.bin", "6789", true},
		{"longer run", "radar_20240601.bin", "2024", true},
		{"no digits", "volume.bin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StationID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStation_Site(t *testing.T) {
	assert.Equal(t, radar.Site{
		Code:      "9250",
		Name:      "Nanjing",
		Latitude:  32.19,
		Longitude: 118.70,
		Altitude:  144,
		Frequency: 2.8,
	}, nanjing.Site())
}

// --- Table / LoadFile ---

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stations:
  - id: "9250"
    name: Nanjing
    latitude: 32.19
    longitude: 118.70
    altitude: 144
    frequency: 2.8
    data_type: SA
  - id: "9571"
    name: Hangzhou
    data_type: CC
`), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	st, err := table.Lookup(context.Background(), "9250")
	require.NoError(t, err)
	assert.Equal(t, nanjing, st)

	_, err = table.Lookup(context.Background(), "0000")
	assert.True(t, IsNotFound(err))
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stations":[{"id":"9010","name":"Beijing","data_type":"SA"}]}`), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	st, err := table.Lookup(context.Background(), "9010")
	require.NoError(t, err)
	assert.Equal(t, "Beijing", st.Name)
}

func TestLoadFile_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stations:\n  - name: nowhere\n"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "has no id")
}

func TestLoadFile_NotExist(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// --- Client ---

func TestClient_Lookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stations/9250", r.URL.Path)
		w.Header().Set("Content-Type", contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(nanjing))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	st, err := testClient(srv.URL+"/", metrics).Lookup(context.Background(), "9250")
	require.NoError(t, err)
	assert.Equal(t, nanjing, st)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegistryRequests.WithLabelValues("success")), 0)
}

func TestClient_Lookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, metrics).Lookup(context.Background(), "0001")
	assert.True(t, IsNotFound(err))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegistryRequests.WithLabelValues("not_found")), 0)
}

func TestClient_Lookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	_, err := testClient(srv.URL, metrics).Lookup(context.Background(), "9250")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "status 500")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegistryRequests.WithLabelValues("error")), 0)
}

func TestClient_Lookup_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, observability.NewMetricsForTesting())
	require.NoError(t, c.CheckReadiness(context.Background()))
	for i := 0; i < 6; i++ {
		_, _ = c.Lookup(context.Background(), "9250")
	}
	_, err := c.Lookup(context.Background(), "9250")
	assert.True(t, errors.Is(err, errUnavailable))
	assert.Equal(t, 6, calls, "open breaker must not reach the server")
	assert.ErrorIs(t, c.CheckReadiness(context.Background()), errUnavailable)
}

func TestClient_Lookup_FillsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(`{"name":"Hefei","latitude":31.87}`))
	}))
	defer srv.Close()

	st, err := testClient(srv.URL, observability.NewMetricsForTesting()).Lookup(context.Background(), "9551")
	require.NoError(t, err)
	assert.Equal(t, "9551", st.ID)
	assert.Equal(t, "Hefei", st.Name)
}

// --- Cached ---

type countingRegistry struct {
	calls int
	table *Table
}

func (r *countingRegistry) Lookup(ctx context.Context, id string) (Station, error) {
	r.calls++
	return r.table.Lookup(ctx, id)
}

func TestCached_Hit(t *testing.T) {
	inner := &countingRegistry{table: NewTable([]Station{nanjing})}
	metrics := observability.NewMetricsForTesting()
	c := NewCached(inner, 4, metrics)

	for i := 0; i < 3; i++ {
		st, err := c.Lookup(context.Background(), "9250")
		require.NoError(t, err)
		assert.Equal(t, nanjing, st)
	}
	assert.Equal(t, 1, inner.calls)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RegistryCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegistryCache.WithLabelValues("miss")), 0)
}

func TestCached_NotFoundNotCached(t *testing.T) {
	inner := &countingRegistry{table: NewTable(nil)}
	c := NewCached(inner, 4, observability.NewMetricsForTesting())

	_, err := c.Lookup(context.Background(), "0001")
	assert.True(t, IsNotFound(err))
	_, err = c.Lookup(context.Background(), "0001")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 2, inner.calls)
}
