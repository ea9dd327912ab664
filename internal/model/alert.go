package model

import "time"

// Alert type values
const (
	AlertTypeSingle    = "single"
	AlertTypeAggregate = "aggregate"
)

// Alert is the payload delivered to the receiver.
// Single alerts carry confidence and bbox; aggregate alerts carry
// count, window_seconds and an example bbox.
type Alert struct {
	Type          string    `json:"type"`
	Class         string    `json:"class"`
	Confidence    float64   `json:"confidence,omitempty"`
	BBox          *BBox     `json:"bbox,omitempty"`
	Count         int       `json:"count,omitempty"`
	WindowSeconds float64   `json:"window_seconds,omitempty"`
	ExampleBBox   *BBox     `json:"example_bbox,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewSingleAlert builds a per-detection alert
func NewSingleAlert(row *DetectionRow) Alert {
	bbox := row.BBox
	return Alert{
		Type:       AlertTypeSingle,
		Class:      row.Class,
		Confidence: row.Confidence,
		BBox:       &bbox,
		Timestamp:  row.Timestamp,
	}
}

// NewAggregateAlert builds a burst summary alert for a class
func NewAggregateAlert(row *DetectionRow, count int, window time.Duration) Alert {
	bbox := row.BBox
	return Alert{
		Type:          AlertTypeAggregate,
		Class:         row.Class,
		Count:         count,
		WindowSeconds: window.Seconds(),
		ExampleBBox:   &bbox,
		Timestamp:     row.Timestamp,
	}
}
