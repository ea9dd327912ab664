package model

import (
	"fmt"
	"time"
)

// DetectionRow represents one parsed observation from the detection log
type DetectionRow struct {
	Timestamp  time.Time `json:"timestamp"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       BBox      `json:"bbox"`
}

// BBox represents a bounding box in pixel coordinates
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Key returns the canonical identity string for a bounding box,
// stable regardless of the row's other fields
func (b BBox) Key() string {
	return fmt.Sprintf("%d:%d:%d:%d", b.X1, b.Y1, b.X2, b.Y2)
}

// AlertKey identifies the suppression group for a detection:
// same class plus same integer bbox approximates "same physical object"
type AlertKey struct {
	Class   string
	BBoxKey string
}

// KeyFor builds the suppression key for a detection row
func KeyFor(row *DetectionRow) AlertKey {
	return AlertKey{
		Class:   row.Class,
		BBoxKey: row.BBox.Key(),
	}
}
