// Command validate decodes every base-data file under a directory with a
// bounded worker pool and reports pass or fail per file.
//
// Usage:
//
//	go run ./cmd/validate -dir /data/radar -workers 8
//	go run ./cmd/validate -dir /data/radar -registry stations.yaml -repair
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/pipeline"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

func main() {
	dir := flag.String("dir", "", "directory containing base-data files")
	workers := flag.Int("workers", 0, "concurrent decoders (default GOMAXPROCS)")
	registryFile := flag.String("registry", "", "station table (json, yaml or toml)")
	repair := flag.Bool("repair", false, "repair inconsistent sweep boundaries")
	verbose := flag.Bool("v", false, "log each failure as it happens")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*dir, *workers, *registryFile, *repair, *verbose))
}

func run(dir string, workers int, registryFile string, repair, verbose bool) int {
	paths, size, err := listFiles(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list %s: %v\n", dir, err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no files in %s\n", dir)
		return 1
	}

	var reg registry.Registry
	if registryFile != "" {
		table, err := registry.LoadFile(registryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load registry: %v\n", err)
			return 1
		}
		reg = table
	}

	level := "error"
	if verbose {
		level = "warn"
	}
	logger := observability.NewLogger(level, "text")
	batch := pipeline.NewBatch(pipeline.NewDecoder(reg, repair, nil), workers, logger)

	fmt.Println("=== Radar Base-Data Validation ===")
	fmt.Printf("%s files, %s on disk\n\n", humanize.Comma(int64(len(paths))), humanize.Bytes(uint64(size)))

	start := time.Now()
	results, err := batch.Run(context.Background(), paths, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	elapsed := time.Since(start)

	formats := map[string]int{}
	for _, r := range results {
		rel, _ := filepath.Rel(dir, r.Path)
		if r.Err != nil {
			fmt.Printf("  %-60s \033[31mFAIL\033[0m\n", rel)
			continue
		}
		formats[r.Volume.Format]++
		fmt.Printf("  %-60s \033[32mPASS\033[0m %-7s %2d sweeps %6s rays  %s\n", rel,
			r.Volume.Format, r.Volume.NSweeps(), humanize.Comma(int64(r.Volume.NRays())),
			r.Duration.Round(time.Millisecond))
	}

	failed := pipeline.Failed(results)
	fmt.Println()
	fmt.Printf("Decoded %d/%d files in %s (%s)\n", len(results)-len(failed), len(results),
		elapsed.Round(time.Millisecond), formatCounts(formats))

	if len(failed) == 0 {
		fmt.Println("\nAll files decoded.")
		return 0
	}

	fmt.Printf("\n--- failures ---\n")
	for i, r := range failed {
		fmt.Printf("  [%d] %v\n", i+1, r.Err)
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// listFiles returns the regular files under dir in lexical order and their
// total size.
func listFiles(dir string) ([]string, int64, error) {
	var (
		paths []string
		size  int64
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		paths = append(paths, path)
		size += info.Size()
		return nil
	})
	return paths, size, err
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "no formats"
	}
	names := make([]string, 0, len(counts))
	for f := range counts {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, f := range names {
		parts[i] = fmt.Sprintf("%s: %d", f, counts[f])
	}
	return strings.Join(parts, ", ")
}
