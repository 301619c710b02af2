package format

import (
	"bytes"
	"context"
	"fmt"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

// SniffLen is the number of leading bytes Sniff inspects.
const SniffLen = 128

var (
	standardMagic    = []byte("RSTM")
	sabMarker        = []byte{0x01, 0x00}
	phasedArrayMark  = []byte{0x10, 0x00, 0x00, 0x00}
	ccMarker         = []byte("CINRAD/CC")
	scMarker         = []byte("CINRAD/SC")
	cdMarker         = []byte("CINRAD/CD")
	netcdfClassic    = []byte("CDF")
	netcdfHDF5       = []byte("\x89HDF")
	fixedHeaderBytes = 1024
)

// Sniff classifies a stream from its leading bytes and total length.
func Sniff(head []byte, size int) (Format, bool) {
	switch {
	case bytes.HasPrefix(head, standardMagic):
		// Phased-array files carry the RSTM magic too.
		if hasAt(head, 8, phasedArrayMark) {
			return PhasedArray, true
		}
		return Standard, true
	case hasAt(head, 14, sabMarker):
		return SAB, true
	case hasAt(head, 8, phasedArrayMark):
		return PhasedArray, true
	case size >= fixedHeaderBytes && (size-fixedHeaderBytes)%ccRecordSize == 0 && hasAt(head, 116, ccMarker):
		return CC, true
	case size >= fixedHeaderBytes && (size-fixedHeaderBytes)%scRecordSize == 0 &&
		(hasAt(head, 100, scMarker) || hasAt(head, 100, cdMarker)):
		return SC, true
	case bytes.HasPrefix(head, netcdfClassic) || bytes.HasPrefix(head, netcdfHDF5):
		return NetCDF, true
	}
	return "", false
}

func hasAt(b []byte, off int, want []byte) bool {
	return len(b) >= off+len(want) && bytes.Equal(b[off:off+len(want)], want)
}

// Detect classifies data, falling back to the registry data type of the
// station named in opts.FileName.
func Detect(ctx context.Context, data []byte, opts Options) (Format, error) {
	head := data
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	if f, ok := Sniff(head, len(data)); ok {
		return f, nil
	}
	if opts.Registry == nil {
		return "", radar.ErrFormatUnknown
	}
	id, ok := registry.StationID(opts.FileName)
	if !ok {
		return "", radar.ErrFormatUnknown
	}
	st, err := opts.Registry.Lookup(ctx, id)
	if err != nil {
		if registry.IsNotFound(err) {
			return "", fmt.Errorf("%w: station %s not registered", radar.ErrFormatUnknown, id)
		}
		return "", fmt.Errorf("station %s: %w", id, err)
	}
	switch st.DataType {
	case "SA", "SB", "CB", "SC", "CD":
		return SAB, nil
	case "CC", "CCJ":
		return CC, nil
	}
	return "", fmt.Errorf("%w: station %s has data type %q", radar.ErrFormatUnknown, id, st.DataType)
}
