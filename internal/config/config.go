package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Product grid configuration.
	GridWorkers  int
	GridExtent   float64
	GridStep     float64
	CAPPIHeights []float64
	InterpMinROI float64
	InterpCoeff  float64
	SweepRepair  bool

	// Station registry configuration. At most one of File and URL is set.
	RegistryFile      string
	RegistryURL       string
	RegistryTimeout   time.Duration
	RegistryCacheSize int
}

// RegistryEnabled reports whether a station registry is configured.
func (c *Config) RegistryEnabled() bool {
	return c.RegistryFile != "" || c.RegistryURL != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	registryTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("STATION_REGISTRY_TIMEOUT", "5s"))
	if err != nil || registryTimeout <= 0 {
		return nil, errors.New("invalid STATION_REGISTRY_TIMEOUT")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "radar-files"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "radar-products"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "radar-volume-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		RegistryFile:    os.Getenv("STATION_REGISTRY_FILE"),
		RegistryURL:     os.Getenv("STATION_REGISTRY_URL"),
		RegistryTimeout: registryTimeout,
	}

	if cfg.GridWorkers, err = parsePositiveInt("GRID_WORKERS", runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}
	if cfg.RegistryCacheSize, err = parsePositiveInt("STATION_REGISTRY_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.GridExtent, err = parsePositiveFloat("GRID_EXTENT_M", 150000); err != nil {
		return nil, err
	}
	if cfg.GridStep, err = parsePositiveFloat("GRID_STEP_M", 1000); err != nil {
		return nil, err
	}
	if cfg.InterpMinROI, err = parsePositiveFloat("INTERP_MIN_ROI_M", 500); err != nil {
		return nil, err
	}
	if cfg.InterpCoeff, err = parsePositiveFloat("INTERP_ROI_COEFF", 50); err != nil {
		return nil, err
	}
	if cfg.CAPPIHeights, err = parseHeights(sharedcfg.EnvOrDefault("CAPPI_HEIGHTS_M", "1500,3000")); err != nil {
		return nil, err
	}
	if cfg.SweepRepair, err = strconv.ParseBool(sharedcfg.EnvOrDefault("SWEEP_REPAIR", "false")); err != nil {
		return nil, errors.New("invalid SWEEP_REPAIR")
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.GridStep > cfg.GridExtent {
		return nil, errors.New("GRID_STEP_M must not exceed GRID_EXTENT_M")
	}
	if cfg.RegistryFile != "" && cfg.RegistryURL != "" {
		return nil, errors.New("STATION_REGISTRY_FILE and STATION_REGISTRY_URL are mutually exclusive")
	}

	return cfg, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parsePositiveFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", name)
	}
	return f, nil
}

// parseHeights parses a comma-separated list of CAPPI heights in meters.
// An empty list disables CAPPI products.
func parseHeights(s string) ([]float64, error) {
	var heights []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.ParseFloat(part, 64)
		if err != nil || h < 0 {
			return nil, fmt.Errorf("invalid CAPPI_HEIGHTS_M: %q", part)
		}
		heights = append(heights, h)
	}
	return heights, nil
}
