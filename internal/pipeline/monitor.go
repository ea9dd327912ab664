package pipeline

import (
	"context"
	"time"

	"yolo-guard/internal/metrics"
	"yolo-guard/internal/parser"
	"yolo-guard/internal/rules"
	"yolo-guard/internal/tail"

	"github.com/sirupsen/logrus"
)

// Monitor drives the tail → parse → evaluate → dispatch loop. One
// goroutine owns all state; alerts go out strictly in file order and a
// dispatch failure never blocks later rows.
type Monitor struct {
	reader   *tail.Reader
	engine   *rules.Engine
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.MonitorMetrics
}

// NewMonitor creates a monitor polling at the given interval
func NewMonitor(reader *tail.Reader, engine *rules.Engine, interval time.Duration, logger *logrus.Logger, m *metrics.MonitorMetrics) *Monitor {
	if interval <= 0 {
		interval = 1 * time.Second
	}
	return &Monitor{
		reader:   reader,
		engine:   engine,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Run tails the detection log until the context is cancelled. Buffered
// but unprocessed lines are dropped on shutdown; the file handle is
// always released.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.reader.Open(ctx); err != nil {
		return err
	}
	defer m.reader.Close()

	p := parser.NewParser(m.reader.Header(), m.logger, m.metrics)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopping")
			return nil
		case <-ticker.C:
			lines, rotated, err := m.reader.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					m.logger.Info("Monitor stopping")
					return nil
				}
				m.logger.Errorf("Poll failed: %v", err)
				continue
			}
			if rotated {
				p.SetHeader(m.reader.Header())
				if m.metrics != nil {
					m.metrics.RotationsDetected.Inc()
				}
			}
			for _, line := range lines {
				if m.metrics != nil {
					m.metrics.RowsRead.Inc()
				}
				row, ok := p.Parse(line)
				if !ok {
					continue
				}
				m.engine.Process(row)
			}
		}
	}
}
