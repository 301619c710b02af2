package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

const testPath = "/data/Z_RADR_I_Z9250_20240601060000_O_DOR_SA_CAP.bin"

var (
	testStart = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	testNow   = time.Date(2024, 6, 1, 6, 7, 30, 0, time.UTC)
)

func testVolume() *radar.Volume {
	return &radar.Volume{
		Format:    "SAB",
		Site:      radar.Site{Code: "Z9250", Name: "Nanjing", Latitude: 32.19, Longitude: 118.7, Altitude: 144, Frequency: 2.8},
		ScanType:  radar.ScanPPI,
		TaskName:  "VCP21",
		Start:     testStart,
		End:       testStart.Add(6 * time.Minute),
		Azimuth:   []float64{0, 180, 0, 180},
		Elevation: []float64{0.5, 0.5, 1.5, 1.5},
		Range:     []float64{250, 500, 750},
		Fields: map[radar.MomentKind][][]float64{
			radar.MomentDBZ: {{1, 2, 3}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
			radar.MomentV:   {{1, 2, 3}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
		},
		Sweeps: []radar.Sweep{
			{Number: 0, StartRay: 0, EndRay: 1, FixedAngle: 0.5},
			{Number: 1, StartRay: 2, EndRay: 3, FixedAngle: 1.5},
		},
	}
}

func TestParseNotification(t *testing.T) {
	t.Run("path and station", func(t *testing.T) {
		n, err := ParseNotification(RawEvent{Value: []byte(`{"path":" ` + testPath + ` ","station":"Z9250"}`)})
		require.NoError(t, err)
		assert.Equal(t, FileNotification{Path: testPath, Station: "Z9250"}, n)
	})

	t.Run("path only", func(t *testing.T) {
		n, err := ParseNotification(RawEvent{Value: []byte(`{"path":"a.bin"}`)})
		require.NoError(t, err)
		assert.Equal(t, "a.bin", n.Path)
		assert.Empty(t, n.Station)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := ParseNotification(RawEvent{Value: []byte(`{"station":"Z9250"}`)})
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseNotification(RawEvent{Value: []byte(`not-json{{{`)})
		assert.ErrorContains(t, err, "parse notification")
	})
}

func TestSummarize(t *testing.T) {
	p := radar.Product{
		Name:   "CAPPI_1500",
		X:      []float64{0, 1000},
		Y:      []float64{0, 1000, 2000},
		Height: 1500,
		Data:   [][]float64{{math.NaN(), 12, 30}, {math.NaN(), math.NaN(), 5}},
	}
	s := Summarize(p)
	require.NotNil(t, s.Max)
	want := ProductSummary{Name: "CAPPI_1500", Height: 1500, NX: 2, NY: 3, Valid: 3, Max: s.Max}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 30.0, *s.Max)

	empty := Summarize(radar.Product{Name: "CR", X: []float64{0}, Y: []float64{0}, Data: [][]float64{{math.NaN()}}})
	assert.Zero(t, empty.Valid)
	assert.Nil(t, empty.Max)
}

func TestNewProductEvent(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { SetClock(nil) })

	products := []radar.Product{{Name: "CR", X: []float64{0}, Y: []float64{0}, Data: [][]float64{{42}}}}
	e := NewProductEvent(FileNotification{Path: testPath}, testVolume(), products)

	assert.Equal(t, "Z9250-2024-06-01T06:00:00Z", e.ID)
	assert.Equal(t, testPath, e.File)
	assert.Equal(t, "SAB", e.Format)
	assert.Equal(t, "ppi", e.ScanType)
	assert.Equal(t, 2, e.Sweeps)
	assert.Equal(t, 4, e.Rays)
	assert.Equal(t, 3, e.Gates)
	assert.Equal(t, []float64{0.5, 1.5}, e.FixedAngles)
	assert.Equal(t, []string{"dBZ", "V"}, e.Moments)
	assert.Equal(t, testNow, e.ProcessedAt)
	require.Len(t, e.Products, 1)
	assert.Equal(t, 42.0, *e.Products[0].Max)
}

func TestNewProductEvent_StationFromNotification(t *testing.T) {
	v := testVolume()
	v.Site.Code = ""
	e := NewProductEvent(FileNotification{Path: testPath, Station: "Z9250"}, v, nil)
	assert.Equal(t, "Z9250-2024-06-01T06:00:00Z", e.ID)

	e = NewProductEvent(FileNotification{Path: testPath}, v, nil)
	assert.Equal(t, "unknown-2024-06-01T06:00:00Z", e.ID)
}

func TestEventKey_UTC(t *testing.T) {
	beijing := time.FixedZone("CST", 8*3600)
	assert.Equal(t, "Z9250-2024-06-01T06:00:00Z", EventKey("Z9250", testStart.In(beijing)))
}

func TestSerialize(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { SetClock(nil) })

	products := []radar.Product{{Name: "CR", X: []float64{0}, Y: []float64{0}, Data: [][]float64{{math.NaN()}}}}
	e := NewProductEvent(FileNotification{Path: testPath}, testVolume(), products)

	out, err := Serialize(e)
	require.NoError(t, err)
	assert.Equal(t, []byte(e.ID), out.Key)
	assert.Equal(t, map[string]string{"format": "SAB", "processed_at": "2024-06-01T06:07:30Z"}, out.Headers)

	var decoded ProductEvent
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, e.Site, decoded.Site)
	assert.Nil(t, decoded.Products[0].Max)
	assert.NotContains(t, string(out.Value), "NaN")
}
