package parser

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"yolo-guard/internal/metrics"
	"yolo-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// Column positions of the fixed 7-column layout used when a field
// cannot be resolved through the header
const (
	posTimestamp = iota
	posClass
	posConfidence
	posX1
	posY1
	posX2
	posY2
)

const minColumns = 7

// Parser maps raw CSV lines to detection rows. It never fails hard: a
// line either yields a row or is skipped.
type Parser struct {
	header  map[string]int
	logger  *logrus.Logger
	metrics *metrics.MonitorMetrics
}

// NewParser creates a parser. The header slice comes from the tail
// reader; nil or empty means positional resolution only.
func NewParser(header []string, logger *logrus.Logger, m *metrics.MonitorMetrics) *Parser {
	p := &Parser{logger: logger, metrics: m}
	p.SetHeader(header)
	return p
}

// SetHeader replaces the column map, e.g. after the tailed file rotated
func (p *Parser) SetHeader(header []string) {
	if len(header) == 0 {
		p.header = nil
		return
	}
	p.header = make(map[string]int, len(header))
	for i, name := range header {
		p.header[strings.ToLower(strings.TrimSpace(name))] = i
	}
}

// Parse turns one raw line into a detection row. The bool reports
// whether the line produced a row; false means the line was skipped.
func (p *Parser) Parse(line string) (*model.DetectionRow, bool) {
	if strings.TrimSpace(line) == "" {
		return nil, false
	}

	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err != nil {
		p.skip(line, "unsplittable")
		return nil, false
	}
	if len(record) < minColumns {
		p.skip(line, "too few columns")
		return nil, false
	}

	classField, ok := p.field(record, "class", posClass)
	if !ok {
		p.skip(line, "no class column")
		return nil, false
	}

	confidence, ok := p.parseConfidence(record)
	if !ok {
		p.skip(line, "bad confidence")
		return nil, false
	}

	bbox, ok := p.parseBBox(record)
	if !ok {
		p.skip(line, "bad coordinates")
		return nil, false
	}

	tsField, _ := p.field(record, "timestamp", posTimestamp)
	return &model.DetectionRow{
		Timestamp:  p.parseTimestamp(tsField),
		Class:      strings.TrimSpace(classField),
		Confidence: confidence,
		BBox:       bbox,
	}, true
}

// field resolves a column by header name when a header was observed,
// falling back to the fixed position for rows wide enough to carry the
// minimal layout
func (p *Parser) field(record []string, name string, pos int) (string, bool) {
	if p.header != nil {
		if idx, ok := p.header[name]; ok && idx < len(record) {
			return record[idx], true
		}
	}
	if len(record) >= minColumns && pos < len(record) {
		return record[pos], true
	}
	return "", false
}

func (p *Parser) parseConfidence(record []string) (float64, bool) {
	raw, ok := p.field(record, "confidence", posConfidence)
	if !ok {
		return 0, false
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return v, true
	}
	if p.header == nil {
		// Positional path: genuinely unparsable data skips the row
		return 0, false
	}
	// Header path: retry the fixed position, then default to zero
	if v, err := strconv.ParseFloat(strings.TrimSpace(record[posConfidence]), 64); err == nil {
		return v, true
	}
	return 0.0, true
}

func (p *Parser) parseBBox(record []string) (model.BBox, bool) {
	coords := [4]int{}
	names := [4]string{"x1", "y1", "x2", "y2"}
	positions := [4]int{posX1, posY1, posX2, posY2}
	for i := range names {
		raw, ok := p.field(record, names[i], positions[i])
		if !ok {
			return model.BBox{}, false
		}
		v, err := parseCoord(raw)
		if err != nil {
			return model.BBox{}, false
		}
		coords[i] = v
	}
	return model.BBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, true
}

// parseCoord parses a pixel coordinate, truncating any decimal text
func parseCoord(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// parseTimestamp parses a strict ISO-8601 timestamp, stripping a
// trailing UTC marker. Unparsable values fall back to the current wall
// clock; the fallback is counted, not treated as an error.
func (p *Parser) parseTimestamp(raw string) time.Time {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "Z")
	if ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC); err == nil {
		return ts
	}
	if p.metrics != nil {
		p.metrics.TimestampFallbacks.Inc()
	}
	p.logger.Debugf("Unparsable timestamp %q, substituting current time", raw)
	return time.Now().UTC()
}

func (p *Parser) skip(line, reason string) {
	if p.metrics != nil {
		p.metrics.RowsSkipped.Inc()
	}
	p.logger.Debugf("Skipping line (%s): %q", reason, line)
}
