package alert

import (
	"yolo-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// LogAlertNotifier sends alerts to local logs
type LogAlertNotifier struct {
	logger *logrus.Logger
}

// NewLogAlertNotifier creates a new log alert notifier
func NewLogAlertNotifier(logger *logrus.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		logger: logger,
	}
}

// SendAlert implements Notifier interface - sends alert to logs
func (ln *LogAlertNotifier) SendAlert(alert model.Alert) error {
	switch alert.Type {
	case model.AlertTypeAggregate:
		ln.logger.Warnf("ALERT [%s] %s: %d detections within %.0fs", alert.Type, alert.Class, alert.Count, alert.WindowSeconds)
	default:
		ln.logger.Warnf("ALERT [%s] %s detected (conf=%.2f)", alert.Type, alert.Class, alert.Confidence)
	}
	return nil
}
