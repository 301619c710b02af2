package format

import (
	"encoding/binary"
	"fmt"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// rawThreshold is the smallest raw code that carries a measurement in the
// standard and phased-array formats.
const rawThreshold = 5

var momentCodes = map[int32]radar.MomentKind{
	1:  radar.MomentDBT,
	2:  radar.MomentDBZ,
	3:  radar.MomentV,
	4:  radar.MomentW,
	5:  radar.MomentSQI,
	6:  radar.MomentCPA,
	7:  radar.MomentZDR,
	8:  radar.MomentLDR,
	9:  radar.MomentCC,
	10: radar.MomentPhiDP,
	11: radar.MomentKDP,
	12: radar.MomentCP,
	14: radar.MomentHCL,
	15: radar.MomentCF,
	16: radar.MomentSNRH,
	17: radar.MomentSNRV,
	32: radar.MomentZc,
	33: radar.MomentVc,
	34: radar.MomentWc,
	35: radar.MomentZDRc,
}

func momentKind(code int32) radar.MomentKind {
	if k, ok := momentCodes[code]; ok {
		return k
	}
	return radar.MomentIgnored
}

// momentHeader prefixes every moment block of a standard or phased-array
// radial.
type momentHeader struct {
	DataType  int32
	Scale     int32
	Offset    int32
	BinLength int16
	Flags     int16
	Length    int32
	_         [12]byte
}

const momentHeaderSize = 32

// scaled decodes raw codes as (raw-Offset)/Scale. Codes below rawThreshold
// are missing. A bad bin width or scale yields an all-missing array.
func (h momentHeader) scaled(payload []byte) []float64 {
	width := int(h.BinLength)
	if width != 1 && width != 2 || h.Scale == 0 {
		return radar.MissingSlice(len(payload))
	}
	n := len(payload) / width
	out := make([]float64, n)
	for i := range out {
		var raw int
		if width == 1 {
			raw = int(payload[i])
		} else {
			raw = int(binary.LittleEndian.Uint16(payload[2*i:]))
		}
		if raw < rawThreshold {
			out[i] = radar.Missing
			continue
		}
		out[i] = float64(raw-int(h.Offset)) / float64(h.Scale)
	}
	return out
}

// gateFor picks the range geometry a moment uses: reflectivity-like
// moments follow the log channel, the rest the Doppler channel.
type gateFor func(kind radar.MomentKind) radar.Gate

// readMoments decodes count moment blocks starting at off and returns the
// moments and the offset after the last block.
func readMoments(data []byte, off, count int, gate gateFor) ([]radar.Moment, int, error) {
	moments := make([]radar.Moment, 0, count)
	for i := 0; i < count; i++ {
		var h momentHeader
		if err := readStruct(data, off, &h); err != nil {
			return nil, 0, fmt.Errorf("moment %d: %w", i, err)
		}
		off += momentHeaderSize
		end := off + int(h.Length)
		if h.Length < 0 || end > len(data) {
			return nil, 0, fmt.Errorf("%w: moment %d needs %d bytes at offset %d, have %d",
				radar.ErrHeaderDecode, i, h.Length, off, len(data))
		}
		kind := momentKind(h.DataType)
		m := radar.Moment{Kind: kind, Code: int(h.DataType), Data: h.scaled(data[off:end])}
		if kind != radar.MomentIgnored {
			m.Gate = gate(kind)
		}
		moments = append(moments, m)
		off = end
	}
	return moments, off, nil
}

func logChannel(k radar.MomentKind) bool {
	return k == radar.MomentDBZ || k == radar.MomentDBT
}

// sweepStatuses maps vendor radial state codes to boundary flags. A start
// code followed by another start, or an end code preceded by another end,
// stands alone and marks a one-ray sweep.
func sweepStatuses(codes []int32) []radar.Status {
	out := make([]radar.Status, len(codes))
	for i, c := range codes {
		out[i] = radar.StatusFromCode(int(c))
	}
	for i := range out {
		switch {
		case out[i].IsStart() && (i+1 == len(out) || out[i+1].IsStart()):
			out[i] = radar.StatusSingle
		case out[i].IsEnd() && (i == 0 || out[i-1].IsEnd()):
			out[i] = radar.StatusSingle
		}
	}
	return out
}
