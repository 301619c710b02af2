package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/radar-volume-etl/internal/radar"
)

// ErrEmptyPath is returned for a notification without a file path.
var ErrEmptyPath = errors.New("notification has no path")

// ParseNotification deserializes a RawEvent's value into a FileNotification.
func ParseNotification(raw RawEvent) (FileNotification, error) {
	var n FileNotification
	if err := json.Unmarshal(raw.Value, &n); err != nil {
		return FileNotification{}, fmt.Errorf("parse notification: %w", err)
	}
	n.Path = strings.TrimSpace(n.Path)
	n.Station = strings.TrimSpace(n.Station)
	if n.Path == "" {
		return FileNotification{}, ErrEmptyPath
	}
	return n, nil
}

// Summarize builds the summary of a gridded product.
func Summarize(p radar.Product) ProductSummary {
	s := ProductSummary{
		Name:       p.Name,
		Height:     p.Height,
		Geographic: p.Geographic,
		NX:         len(p.X),
		NY:         len(p.Y),
	}
	valid, peak := p.Stats()
	s.Valid = valid
	if valid > 0 {
		s.Max = &peak
	}
	return s
}

// NewProductEvent summarizes a decoded volume and its products.
func NewProductEvent(n FileNotification, v *radar.Volume, products []radar.Product) ProductEvent {
	moments := v.Moments()
	names := make([]string, len(moments))
	for i, k := range moments {
		names[i] = k.String()
	}
	summaries := make([]ProductSummary, len(products))
	for i := range products {
		summaries[i] = Summarize(products[i])
	}
	station := v.Site.Code
	if station == "" {
		station = n.Station
	}
	return ProductEvent{
		ID:          EventKey(station, v.Start),
		File:        n.Path,
		Format:      v.Format,
		Site:        v.Site,
		TaskName:    v.TaskName,
		ScanType:    string(v.ScanType),
		Sweeps:      v.NSweeps(),
		Rays:        v.NRays(),
		Gates:       len(v.Range),
		FixedAngles: v.FixedAngles(),
		Moments:     names,
		StartTime:   v.Start,
		EndTime:     v.End,
		Products:    summaries,
		ProcessedAt: clock.Now().UTC(),
	}
}

// EventKey returns the partition key of a volume. An unknown station is
// written as "unknown".
func EventKey(station string, start time.Time) string {
	if station == "" {
		station = "unknown"
	}
	return station + "-" + start.UTC().Format(time.RFC3339)
}

// Serialize marshals a ProductEvent for the sink topic.
func Serialize(e ProductEvent) (OutputEvent, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize product event: %w", err)
	}
	return OutputEvent{
		Key:   []byte(e.ID),
		Value: data,
		Headers: map[string]string{
			"format":       e.Format,
			"processed_at": e.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
