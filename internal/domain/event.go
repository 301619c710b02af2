package domain

import (
	"context"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// FileNotification announces a base-data file ready for decoding.
type FileNotification struct {
	Path    string `json:"path"`
	Station string `json:"station,omitempty"`
}

// ProductSummary describes one gridded product of a volume.
type ProductSummary struct {
	Name       string  `json:"name"`
	Height     float64 `json:"height,omitempty"`
	Geographic bool    `json:"geographic,omitempty"`
	NX         int     `json:"nx"`
	NY         int     `json:"ny"`
	Valid      int     `json:"valid_cells"`
	// Max is nil when no cell is valid.
	Max *float64 `json:"max,omitempty"`
}

// ProductEvent is the volume summary published after a file is decoded and
// gridded.
type ProductEvent struct {
	ID          string           `json:"id"`
	File        string           `json:"file"`
	Format      string           `json:"format"`
	Site        radar.Site       `json:"site"`
	TaskName    string           `json:"task_name,omitempty"`
	ScanType    string           `json:"scan_type"`
	Sweeps      int              `json:"sweeps"`
	Rays        int              `json:"rays"`
	Gates       int              `json:"gates"`
	FixedAngles []float64        `json:"fixed_angles"`
	Moments     []string         `json:"moments"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Products    []ProductSummary `json:"products"`
	ProcessedAt time.Time        `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
