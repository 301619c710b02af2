// Command gensynth writes a synthetic standard-format base-data volume for
// smoke testing the service and prints the file notification to publish.
//
// Usage:
//
//	go run ./cmd/gensynth -out data/Z_RADR_I_Z9250_20240601060000_O_DOR_SAD_CAP_FMT.bin.gz -gzip
//	go run ./cmd/gensynth -out vol.bin -cuts 0.5,1.5,2.4,3.4 -rays 360 -gates 460
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/radar-volume-etl/internal/domain"
	"github.com/couchcryptid/radar-volume-etl/internal/format"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path")
	compress := flag.Bool("gzip", false, "gzip the output")
	site := flag.String("site", "Z9250", "site code")
	lat := flag.Float64("lat", 32.19, "site latitude (degrees)")
	lon := flag.Float64("lon", 118.70, "site longitude (degrees)")
	alt := flag.Int("alt", 144, "site altitude (m)")
	cuts := flag.String("cuts", "0.5,1.5,2.4,3.4,4.3,6.0", "elevation angles (degrees), comma separated")
	rays := flag.Int("rays", 360, "radials per cut")
	gates := flag.Int("gates", 460, "gates per radial")
	res := flag.Int("res", 250, "gate spacing (m)")
	start := flag.String("start", "2024-06-01T06:00:00Z", "volume start time (RFC3339)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	t0, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	elevations, err := parseAngles(*cuts)
	if err != nil {
		return err
	}

	s := format.Synthetic{
		SiteCode:     *site,
		SiteName:     "Synthetic",
		Latitude:     *lat,
		Longitude:    *lon,
		Altitude:     int32(*alt),
		FrequencyMHz: 2800,
		BeamWidth:    0.95,
		TaskName:     "VCP21D",
		Start:        t0,
		Moments:      []int32{2, 3, 4},
		Value:        storm(*rays, *gates),
	}
	for _, el := range elevations {
		s.Cuts = append(s.Cuts, format.SyntheticCut{
			Elevation:  el,
			Rays:       *rays,
			Gates:      *gates,
			Resolution: int32(*res),
			Nyquist:    27.8,
		})
	}

	data, err := format.EncodeStandard(s)
	if err != nil {
		return err
	}
	if err := writeFile(*out, data, *compress); err != nil {
		return err
	}
	log.Printf("wrote %s: %d cuts, %s", *out, len(s.Cuts), humanize.Bytes(uint64(len(data))))

	abs, err := filepath.Abs(*out)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(domain.FileNotification{Path: abs, Station: *site})
}

// storm places a reflectivity cell a third of the way out on the 45 degree
// radial with a rotating velocity couplet. The cell weakens with elevation.
func storm(rays, gates int) func(code int32, cut, ray, gate int) float64 {
	centerRay := rays / 8
	centerGate := gates / 3
	return func(code int32, cut, ray, gate int) float64 {
		dr := float64(ray - centerRay)
		dg := float64(gate - centerGate)
		d := math.Hypot(dr, dg/2)
		switch code {
		case 2:
			if d > 40 {
				return math.NaN()
			}
			return 60 - d - 3*float64(cut)
		case 3:
			if d > 20 {
				return math.NaN()
			}
			return math.Copysign(math.Min(25, 30-d), dr)
		default:
			if d > 20 {
				return math.NaN()
			}
			return 1 + d/10
		}
	}
}

func writeFile(path string, data []byte, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if !compress {
		_, err = f.Write(data)
		return err
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

func parseAngles(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		a, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid elevation %q: %w", part, err)
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no elevation cuts")
	}
	return out, nil
}
