// Command radarinfo decodes one base-data file and prints its site, task and
// sweep layout, optionally followed by gridded product statistics.
//
// Usage:
//
//	go run ./cmd/radarinfo -file Z_RADR_I_Z9250_20240601060000_O_DOR_SAD_CAP_FMT.bin.bz2
//	go run ./cmd/radarinfo -file 9250.bin -registry stations.yaml -products -heights 1500,3000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/radar-volume-etl/internal/format"
	"github.com/couchcryptid/radar-volume-etl/internal/frame"
	"github.com/couchcryptid/radar-volume-etl/internal/grid"
	"github.com/couchcryptid/radar-volume-etl/internal/normalize"
	"github.com/couchcryptid/radar-volume-etl/internal/pipeline"
	"github.com/couchcryptid/radar-volume-etl/internal/radar"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	path := flag.String("file", "", "base-data file to decode")
	registryFile := flag.String("registry", "", "station table (json, yaml or toml)")
	lat := flag.String("lat", "", "override site latitude (degrees)")
	lon := flag.String("lon", "", "override site longitude (degrees)")
	alt := flag.String("alt", "", "override site altitude (m)")
	band := flag.String("band", "S", "NetCDF radar band: S, C or X")
	repair := flag.Bool("repair", false, "repair inconsistent sweep boundaries")
	products := flag.Bool("products", false, "grid CR and CAPPI products and print their statistics")
	extent := flag.Float64("extent", 150000, "product grid half-width (m)")
	step := flag.Float64("step", 1000, "product grid spacing (m)")
	heights := flag.String("heights", "1500,3000", "CAPPI heights (m), comma separated")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -file")
	}

	opts := format.Options{FileName: filepath.Base(*path), Band: *band}
	var err error
	if opts.Latitude, err = optionalFloat("lat", *lat); err != nil {
		return err
	}
	if opts.Longitude, err = optionalFloat("lon", *lon); err != nil {
		return err
	}
	if opts.Altitude, err = optionalFloat("alt", *alt); err != nil {
		return err
	}
	if *registryFile != "" {
		table, err := registry.LoadFile(*registryFile)
		if err != nil {
			return fmt.Errorf("load registry: %w", err)
		}
		opts.Registry = table
	}

	data, compression, err := frame.ReadFile(*path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	f, err := format.Detect(ctx, data, opts)
	if err != nil {
		return err
	}
	start := time.Now()
	raw, err := format.DecodeAs(ctx, f, data, opts)
	if err != nil {
		return err
	}
	v, err := normalize.Build(raw, normalize.Options{Repair: *repair})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("File:      %s (%s, %s decompressed)\n", *path, compression, humanize.Bytes(uint64(len(data))))
	fmt.Printf("Format:    %s, decoded in %s\n", v.Format, elapsed.Round(time.Millisecond))
	fmt.Printf("Site:      %s %s  %.4f, %.4f  %.1f m  %.3f GHz\n",
		v.Site.Code, v.Site.Name, v.Site.Latitude, v.Site.Longitude, v.Site.Altitude, v.Site.Frequency)
	fmt.Printf("Task:      %s (%s)\n", v.TaskName, v.ScanType)
	fmt.Printf("Time:      %s .. %s\n", v.Start.UTC().Format(time.RFC3339), v.End.UTC().Format(time.RFC3339))
	fmt.Printf("Radials:   %s in %d sweeps, %s gates\n",
		humanize.Comma(int64(v.NRays())), v.NSweeps(), humanize.Comma(int64(len(v.Range))))
	fmt.Printf("Moments:   %s\n", momentList(v.Moments()))
	if len(v.IgnoredCodes) > 0 {
		fmt.Printf("Ignored:   moment codes %v\n", v.IgnoredCodes)
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "sweep\trays\tangle\tnyquist\trange(km)\tres(m)\t")
	for _, s := range v.Sweeps {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.2f\t%.1f\t%.0f\t\n",
			s.Number, s.Rays(), s.FixedAngle, s.Nyquist, s.UnambiguousRange/1000, s.Resolution)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !*products {
		return nil
	}
	hs, err := parseHeights(*heights)
	if err != nil {
		return err
	}
	return printProducts(v, pipeline.ProductConfig{Extent: *extent, Step: *step}.Axis(), hs)
}

func printProducts(v *radar.Volume, ax, heights []float64) error {
	builders := []func() (radar.Product, error){
		func() (radar.Product, error) { return v.CompositeReflectivity(ax, ax, grid.Options{}) },
	}
	for _, h := range heights {
		builders = append(builders, func() (radar.Product, error) {
			return v.ConstantAltitudeSlice(ax, ax, h, grid.Options{})
		})
	}

	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "product\tcells\tvalid\tmax\ttime")
	for _, build := range builders {
		start := time.Now()
		p, err := build()
		if err != nil {
			return err
		}
		valid, peak := p.Stats()
		maxText := "-"
		if !math.IsNaN(peak) {
			maxText = strconv.FormatFloat(peak, 'f', 1, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name,
			humanize.Comma(int64(len(p.X)*len(p.Y))), humanize.Comma(int64(valid)),
			maxText, time.Since(start).Round(time.Millisecond))
	}
	return tw.Flush()
}

func momentList(ks []radar.MomentKind) string {
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = k.String()
	}
	return strings.Join(names, " ")
}

func optionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s: %w", name, err)
	}
	return &f, nil
}

func parseHeights(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid height %q: %w", part, err)
		}
		out = append(out, h)
	}
	return out, nil
}
