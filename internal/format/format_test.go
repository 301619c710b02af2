package format_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/radar-volume-etl/internal/format"
	"github.com/couchcryptid/radar-volume-etl/internal/normalize"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

// --- fixtures ---

var volumeStart = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

func synthetic(cuts ...format.SyntheticCut) format.Synthetic {
	return format.Synthetic{
		SiteCode:     "Z9250",
		SiteName:     "Nanjing",
		Latitude:     32.19,
		Longitude:    118.70,
		Altitude:     144,
		FrequencyMHz: 2800,
		BeamWidth:    0.95,
		TaskName:     "VCP21D",
		Start:        volumeStart,
		Cuts:         cuts,
		Moments:      []int32{2, 3},
		Value: func(code int32, cut, ray, gate int) float64 {
			if code == 2 {
				return float64(gate%40) + 0.5*float64(cut)
			}
			return float64(ray%20) - 10
		},
	}
}

func encode(t *testing.T, s format.Synthetic) []byte {
	t.Helper()
	data, err := format.EncodeStandard(s)
	require.NoError(t, err)
	return data
}

func decodeVolume(t *testing.T, data []byte, opts format.Options) *radar.Volume {
	t.Helper()
	raw, err := format.Decode(context.Background(), data, opts)
	require.NoError(t, err)
	v, err := normalize.Build(raw, normalize.Options{})
	require.NoError(t, err)
	return v
}

// --- detection ---

func TestSniff(t *testing.T) {
	head := func(size int, patch func(b []byte)) []byte {
		b := make([]byte, size)
		patch(b)
		return b
	}
	tests := []struct {
		name string
		data []byte
		want format.Format
	}{
		{"standard", head(64, func(b []byte) { copy(b, "RSTM") }), format.Standard},
		{"standard phased array", head(64, func(b []byte) { copy(b, "RSTM"); b[8] = 0x10 }), format.PhasedArray},
		{"legacy flag", head(2432, func(b []byte) { b[14] = 0x01 }), format.SAB},
		{"phased array marker", head(64, func(b []byte) { b[8] = 0x10 }), format.PhasedArray},
		{"cc marker", head(1024+3000*2, func(b []byte) { copy(b[116:], "CINRAD/CC") }), format.CC},
		{"sc marker", head(1024+4000, func(b []byte) { copy(b[100:], "CINRAD/SC") }), format.SC},
		{"cd marker", head(1024+4000, func(b []byte) { copy(b[100:], "CINRAD/CD") }), format.SC},
		{"netcdf classic", head(64, func(b []byte) { copy(b, "CDF\x01") }), format.NetCDF},
		{"hdf5", head(64, func(b []byte) { copy(b, "\x89HDF\r\n") }), format.NetCDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := format.Detect(context.Background(), tt.data, format.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_SizeModulusRequired(t *testing.T) {
	b := make([]byte, 1024+3000+1)
	copy(b[116:], "CINRAD/CC")
	_, err := format.Detect(context.Background(), b, format.Options{})
	assert.ErrorIs(t, err, radar.ErrFormatUnknown)
}

func TestDetect_RegistryFallback(t *testing.T) {
	reg := registry.NewTable([]registry.Station{
		{ID: "9250", DataType: "SA"},
		{ID: "9571", DataType: "CCJ"},
		{ID: "9999", DataType: "XPOL"},
	})
	blank := make([]byte, 100)
	tests := []struct {
		file string
		want format.Format
		err  error
	}{
		{"Z_RADR_I_Z9250_20240601.bin", format.SAB, nil},
		{"Z_RADR_I_Z9571_20240601.bin", format.CC, nil},
		{"Z_RADR_I_Z9999_20240601.bin", "", radar.ErrFormatUnknown},
		{"Z_RADR_I_Z1234_20240601.bin", "", radar.ErrFormatUnknown},
		{"volume.bin", "", radar.ErrFormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := format.Detect(context.Background(), blank, format.Options{FileName: tt.file, Registry: reg})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_UnknownWithoutRegistry(t *testing.T) {
	_, err := format.Detect(context.Background(), []byte("hello"), format.Options{FileName: "Z9250.bin"})
	assert.ErrorIs(t, err, radar.ErrFormatUnknown)
}

// --- standard format ---

func TestDecode_SingleCut460Gates(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{
		Elevation: 0.5, Rays: 360, Gates: 460, Resolution: 250, Nyquist: 26.5,
	}))

	v := decodeVolume(t, data, format.Options{})
	assert.Equal(t, 1, v.NSweeps())
	assert.Equal(t, 360, v.NRays())
	dbz := v.Fields[radar.MomentDBZ]
	require.Len(t, dbz, 360)
	for _, row := range dbz {
		require.Len(t, row, 460)
	}
	assert.Len(t, v.Range, 460)
	assert.InDelta(t, 250, v.Range[0], 1e-9)
	assert.InDelta(t, 460*250, v.Range[459], 1e-9)
	assert.InDelta(t, 0.5, v.Sweeps[0].FixedAngle, 1e-6)
	assert.InDelta(t, 26.5, v.Sweeps[0].Nyquist, 1e-6)
	assert.InDelta(t, 7, dbz[0][7], 1e-9)
	assert.InDelta(t, -10, v.Fields[radar.MomentV][0][0], 1e-9)
	assert.InDelta(t, 9, v.Fields[radar.MomentV][19][0], 1e-9)
}

func TestDecode_StandardMetadata(t *testing.T) {
	s := synthetic(
		format.SyntheticCut{Elevation: 0.5, Rays: 10, Gates: 20, Resolution: 250, Nyquist: 8},
		format.SyntheticCut{Elevation: 1.5, Rays: 10, Gates: 20, Resolution: 250, Nyquist: 27},
	)
	raw, err := format.Decode(context.Background(), encode(t, s), format.Options{})
	require.NoError(t, err)

	assert.Equal(t, "WSR98D", raw.Format)
	assert.Equal(t, "VCP21D", raw.TaskName)
	assert.Equal(t, radar.ScanPPI, raw.ScanType)
	assert.Equal(t, radar.MergeAdjacent, raw.Merge)
	assert.Equal(t, 2, raw.DeclaredSweeps)
	assert.True(t, raw.Start.Equal(volumeStart))
	assert.Equal(t, radar.Gate{First: 250, Spacing: 250}, raw.RefGate)

	want := radar.Site{
		Code: "Z9250", Name: "Nanjing",
		Latitude: 32.19, Longitude: 118.70, Altitude: 144, Frequency: 2.8, BeamWidth: 0.95,
	}
	if diff := cmp.Diff(want, raw.Site, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("site mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, raw.Radials, 20)
	assert.Equal(t, radar.StatusStart, raw.Radials[0].Status)
	assert.Equal(t, radar.StatusEnd, raw.Radials[9].Status)
	assert.Equal(t, radar.StatusStart, raw.Radials[10].Status)
	assert.Equal(t, radar.StatusEnd, raw.Radials[19].Status)
	assert.InDelta(t, 27, raw.Radials[15].Nyquist, 1e-6)
	assert.InDelta(t, 5000, raw.Radials[15].UnambiguousRange, 1e-6)
	assert.True(t, raw.Radials[0].Time.Equal(volumeStart.Add(100*time.Millisecond)))
}

func TestDecoder_Accessors(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{Elevation: 359.5, Rays: 4, Gates: 5, Resolution: 500, Nyquist: 10}))
	dec, err := format.NewDecoder(context.Background(), format.Standard, data, format.Options{})
	require.NoError(t, err)
	require.NoError(t, dec.ReadHeader())
	require.NoError(t, dec.ReadRadials())

	assert.Equal(t, format.Standard, dec.Format())
	assert.Equal(t, []float64{0, 90, 180, 270}, dec.Azimuth())
	for _, el := range dec.Elevation() {
		assert.InDelta(t, -0.5, el, 1e-5)
	}
	assert.Len(t, dec.ScanTime(), 4)
	assert.Equal(t, []float64{10, 10, 10, 10}, dec.NyquistVelocity())
	assert.Equal(t, []float64{2500, 2500, 2500, 2500}, dec.UnambiguousRange())
	assert.Equal(t, "Nanjing", dec.SiteLocation().Name)
}

func TestDecode_SiteOverrides(t *testing.T) {
	lat, alt := 30.0, 50.0
	raw, err := format.Decode(context.Background(),
		encode(t, synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 5, Resolution: 250})),
		format.Options{Latitude: &lat, Altitude: &alt})
	require.NoError(t, err)
	assert.InDelta(t, 30, raw.Site.Latitude, 1e-9)
	assert.InDelta(t, 118.70, raw.Site.Longitude, 1e-5)
	assert.InDelta(t, 50, raw.Site.Altitude, 1e-9)
}

func TestDecode_MissingValues(t *testing.T) {
	s := synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 10, Resolution: 250})
	s.Value = func(code int32, _, _, gate int) float64 {
		if gate%2 == 1 {
			return math.NaN()
		}
		return 20
	}
	v := decodeVolume(t, encode(t, s), format.Options{})
	row := v.Fields[radar.MomentDBZ][0]
	assert.InDelta(t, 20, row[0], 1e-9)
	assert.True(t, radar.IsMissing(row[1]))
}

func TestDecode_SplitCutsMerge(t *testing.T) {
	s := synthetic(
		format.SyntheticCut{Elevation: 0.5, Rays: 8, Gates: 12, Resolution: 250, Moments: []int32{2}},
		format.SyntheticCut{Elevation: 0.52, Rays: 8, Gates: 12, Resolution: 250, Nyquist: 27, Moments: []int32{3, 4}},
		format.SyntheticCut{Elevation: 1.5, Rays: 8, Gates: 12, Resolution: 250, Nyquist: 27},
	)
	v := decodeVolume(t, encode(t, s), format.Options{})

	require.Equal(t, 2, v.NSweeps())
	assert.Equal(t, 16, v.NRays())
	assert.InDelta(t, 0.52, v.Sweeps[0].FixedAngle, 1e-5)
	for ray := 0; ray < v.NRays(); ray++ {
		assert.False(t, radar.IsMissing(v.Fields[radar.MomentDBZ][ray][0]), "ray %d dBZ", ray)
		assert.False(t, radar.IsMissing(v.Fields[radar.MomentV][ray][0]), "ray %d V", ray)
	}
}

func TestDecode_DualPolTwoByteMoments(t *testing.T) {
	s := synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 6, Resolution: 250})
	s.Moments = []int32{2, 7, 9}
	s.Value = func(code int32, _, _, gate int) float64 {
		switch code {
		case 7:
			return 1.25
		case 9:
			return 0.98
		}
		return 30
	}
	v := decodeVolume(t, encode(t, s), format.Options{})
	assert.InDelta(t, 1.25, v.Fields[radar.MomentZDR][0][0], 1e-9)
	assert.InDelta(t, 0.98, v.Fields[radar.MomentCC][3][5], 1e-9)
}

func TestDecode_IgnoredMomentCode(t *testing.T) {
	s := synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 6, Resolution: 250})
	s.Moments = []int32{2, 13}
	s.Value = func(int32, int, int, int) float64 { return 10 }

	raw, err := format.Decode(context.Background(), encode(t, s), format.Options{})
	require.NoError(t, err)
	m := raw.Radials[0].Moments[1]
	assert.Equal(t, radar.MomentIgnored, m.Kind)
	assert.Equal(t, 13, m.Code)

	v, err := normalize.Build(raw, normalize.Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{13}, v.IgnoredCodes)
	assert.Equal(t, []radar.MomentKind{radar.MomentDBZ}, v.Moments())
}

func TestDecode_RHIFixedAngleIsAzimuth(t *testing.T) {
	s := synthetic(format.SyntheticCut{Elevation: 0, Rays: 4, Gates: 5, Resolution: 250})
	s.ScanType = 2
	raw, err := format.Decode(context.Background(), encode(t, s), format.Options{})
	require.NoError(t, err)
	assert.Equal(t, radar.ScanRHI, raw.ScanType)
	require.Len(t, raw.Cuts, 1)
	assert.Equal(t, raw.Cuts[0].Azimuth, raw.Cuts[0].FixedAngle)
}

func TestDecode_SplitScanTaskUsesPositionalMerge(t *testing.T) {
	s := synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 5, Resolution: 250})
	s.TaskName = "VCP26D-HZ"
	raw, err := format.Decode(context.Background(), encode(t, s), format.Options{})
	require.NoError(t, err)
	assert.Equal(t, radar.MergePositional, raw.Merge)
}

func TestDecode_TruncatedMoment(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 50, Resolution: 250}))
	_, err := format.Decode(context.Background(), data[:len(data)-10], format.Options{})
	assert.ErrorIs(t, err, radar.ErrHeaderDecode)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 50, Resolution: 250}))
	_, err := format.Decode(context.Background(), data[:300], format.Options{})
	assert.ErrorIs(t, err, radar.ErrHeaderDecode)
}

func TestDecode_TrailingBytesIgnored(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 5, Resolution: 250}))
	data = append(data, make([]byte, 20)...)
	raw, err := format.Decode(context.Background(), data, format.Options{})
	require.NoError(t, err)
	assert.Len(t, raw.Radials, 4)
}

func TestDecode_ZeroCutNumber(t *testing.T) {
	data := encode(t, synthetic(format.SyntheticCut{Elevation: 0.5, Rays: 4, Gates: 5, Resolution: 250}))
	binary.LittleEndian.PutUint32(data[160+32+128+16:], 0)
	_, err := format.Decode(context.Background(), data, format.Options{})
	assert.ErrorIs(t, err, radar.ErrHeaderDecode)
}

func TestNewDecoder_UnknownFormat(t *testing.T) {
	_, err := format.NewDecoder(context.Background(), "GRIB", nil, format.Options{})
	assert.ErrorIs(t, err, radar.ErrFormatUnknown)
}

func TestEncodeStandard_NoCuts(t *testing.T) {
	_, err := format.EncodeStandard(format.Synthetic{})
	assert.Error(t, err)
}
