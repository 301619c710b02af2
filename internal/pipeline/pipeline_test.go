package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/radar-volume-etl/internal/domain"
	"github.com/couchcryptid/radar-volume-etl/internal/format"
	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/pipeline"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

// --- mocks ---

type mockExtractor struct {
	mu     sync.Mutex
	events []domain.RawEvent
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	n := min(batchSize, len(m.events))
	batch := m.events[:n]
	m.events = m.events[n:]
	m.mu.Unlock()
	if len(batch) > 0 {
		return batch, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	fail map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.fail[string(raw.Key)] {
		return domain.OutputEvent{}, errors.New("bad file")
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func notification(t *testing.T, key, path string) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.FileNotification{Path: path})
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(key), Value: data}
}

// --- fixtures ---

var volumeStart = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

func syntheticFile(t *testing.T, dir, name string, compress bool) string {
	t.Helper()
	data, err := format.EncodeStandard(format.Synthetic{
		SiteCode:     "Z9250",
		SiteName:     "Nanjing",
		Latitude:     32.19,
		Longitude:    118.7,
		Altitude:     100,
		FrequencyMHz: 2800,
		BeamWidth:    1,
		TaskName:     "VCP21D",
		Start:        volumeStart,
		Cuts: []format.SyntheticCut{
			{Elevation: 0.5, Rays: 90, Gates: 80, Resolution: 500, Nyquist: 8},
			{Elevation: 2.4, Rays: 90, Gates: 80, Resolution: 500, Nyquist: 27},
		},
		Moments: []int32{2, 3},
		Value: func(code int32, cut, _, gate int) float64 {
			if code == 2 {
				return 20 + float64(cut)*10
			}
			return float64(gate % 10)
		},
	})
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if compress {
		zw := gzip.NewWriter(f)
		_, err = zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return path
	}
	_, err = f.Write(data)
	require.NoError(t, err)
	return path
}

func productConfig() pipeline.ProductConfig {
	return pipeline.ProductConfig{
		Extent:       20000,
		Step:         5000,
		CAPPIHeights: []float64{1500},
		Workers:      2,
		MinROI:       500,
		ROICoeff:     50,
	}
}

// --- pipeline loop ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{notification(t, "a", "a.bin"), notification(t, "b", "b.bin")}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)

	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, 2, ldr.count())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.NotificationsConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ProductsProduced), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int32
	bad := notification(t, "bad", "bad.bin")
	bad.Commit = func(context.Context) error { commits.Add(1); return nil }
	good := notification(t, "good", "good.bin")
	good.Commit = func(context.Context) error { commits.Add(1); return nil }

	ext := &mockExtractor{events: []domain.RawEvent{bad, good}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(ext, &mockTransformer{fail: map[string]bool{"bad": true}}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	require.Equal(t, 1, ldr.count())
	assert.Equal(t, []byte("good"), ldr.loaded[0].Key)
	assert.Equal(t, int32(2), commits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_LogsVolumeOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ext := &mockExtractor{events: []domain.RawEvent{notification(t, "bad", "bad.bin"), notification(t, "good", "good.bin")}}
	p := pipeline.New(ext, &mockTransformer{fail: map[string]bool{"bad": true}}, &mockLoader{}, logger, observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	out := buf.String()
	assert.Contains(t, out, `msg="volume decode failed, skipping file notification"`)
	assert.Contains(t, out, "key=bad")
	assert.Contains(t, out, `msg="product events published" events=1 skipped=1`)
	assert.Contains(t, out, `msg="volume pipeline started" batch_size=10`)
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var commits atomic.Int32
	raw := notification(t, "a", "a.bin")
	raw.Commit = func(context.Context) error { commits.Add(1); return nil }

	ldr := &mockLoader{err: errors.New("broker down")}
	p := pipeline.New(&mockExtractor{events: []domain.RawEvent{raw}}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Zero(t, commits.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

// --- volume transformer ---

func TestVolumeTransformer_Transform(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 6, 10, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	path := syntheticFile(t, t.TempDir(), "Z_RADR_I_Z9250_20240601060000_O_DOR_SAD_CAP_FMT.bin.gz", true)
	metrics := observability.NewMetricsForTesting()
	tfm := pipeline.NewTransformer(pipeline.NewDecoder(nil, false, metrics), productConfig(), metrics, discardLogger())

	out, err := tfm.Transform(context.Background(), notification(t, "k", path))
	require.NoError(t, err)
	assert.Equal(t, "Z9250-2024-06-01T06:00:00Z", string(out.Key))
	assert.Equal(t, map[string]string{"format": "WSR98D", "processed_at": "2024-06-01T06:10:00Z"}, out.Headers)

	var e domain.ProductEvent
	require.NoError(t, json.Unmarshal(out.Value, &e))
	assert.Equal(t, path, e.File)
	assert.Equal(t, 2, e.Sweeps)
	assert.Equal(t, 180, e.Rays)
	assert.Equal(t, []string{"dBZ", "V"}, e.Moments)

	names := make([]string, len(e.Products))
	for i, p := range e.Products {
		names[i] = p.Name
		assert.Equal(t, 9, p.NX)
		assert.Equal(t, 9, p.NY)
	}
	if diff := cmp.Diff([]string{"CR", "CAPPI_1500", "PPI_0_dBZ"}, names); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, e.Products[0].Max)
	assert.InDelta(t, 30, *e.Products[0].Max, 1e-9)
	require.NotNil(t, e.Products[2].Max)
	assert.InDelta(t, 20, *e.Products[2].Max, 1e-9)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FilesDecoded.WithLabelValues("WSR98D")), 0)
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.GridDuration))
}

func TestVolumeTransformer_Errors(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not radar data"), 0o600))

	metrics := observability.NewMetricsForTesting()
	tfm := pipeline.NewTransformer(pipeline.NewDecoder(nil, false, metrics), productConfig(), metrics, discardLogger())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrEmptyPath)

	_, err = tfm.Transform(context.Background(), notification(t, "k", filepath.Join(dir, "missing.bin")))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = tfm.Transform(context.Background(), notification(t, "k", junk))
	assert.Error(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.DecodeErrors.WithLabelValues("unknown")), 0)
}

func TestProductConfig_Axis(t *testing.T) {
	assert.Equal(t, []float64{-10, -5, 0, 5, 10}, pipeline.ProductConfig{Extent: 10, Step: 5}.Axis())
	assert.Equal(t, []float64{0}, pipeline.ProductConfig{Extent: 10}.Axis())
}

// --- decoder ---

func TestDecoder_RegistryFallback(t *testing.T) {
	reg := registry.NewTable([]registry.Station{{ID: "9250", DataType: "SA"}})
	dec := pipeline.NewDecoder(reg, false, nil)
	_, err := dec.Decode(context.Background(), "Z_RADR_I_Z9250_20240601.bin", make([]byte, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z_RADR_I_Z9250_20240601.bin")
}

// --- batch ---

func TestBatch_Run(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		syntheticFile(t, dir, "a.bin", false),
		filepath.Join(dir, "missing.bin"),
		syntheticFile(t, dir, "c.bin.gz", true),
	}
	b := pipeline.NewBatch(pipeline.NewDecoder(nil, false, nil), 2, discardLogger())

	var calls atomic.Int32
	results, err := b.Run(context.Background(), paths, func(pipeline.FileResult) { calls.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Volume.NSweeps())
	assert.ErrorIs(t, results[1].Err, os.ErrNotExist)
	require.NoError(t, results[2].Err)

	failed := pipeline.Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, paths[1], failed[0].Path)
}

func TestBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := pipeline.NewBatch(pipeline.NewDecoder(nil, false, nil), 1, discardLogger())
	results, err := b.Run(ctx, []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 2)
}

func TestLowestSweepProductIsFinite(t *testing.T) {
	path := syntheticFile(t, t.TempDir(), "v.bin", false)
	metrics := observability.NewMetricsForTesting()
	dec := pipeline.NewDecoder(nil, false, metrics)
	v, err := dec.DecodeFile(context.Background(), path)
	require.NoError(t, err)

	products, err := pipeline.NewTransformer(dec, productConfig(), metrics, discardLogger()).Products(v)
	require.NoError(t, err)
	for _, p := range products {
		for _, row := range p.Data {
			for _, val := range row {
				assert.False(t, math.IsInf(val, 0))
			}
		}
	}
}
