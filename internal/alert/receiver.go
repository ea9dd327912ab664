package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"yolo-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// TokenHeader carries the shared secret on every alert POST
const TokenHeader = "X-Auth-Token"

// DefaultTimeout bounds a single delivery attempt
const DefaultTimeout = 3 * time.Second

// ReceiverNotifier delivers alerts to the receiver endpoint as JSON
// over HTTP POST. Delivery is a single bounded attempt; both non-2xx
// responses and transport errors are reported as failures with the
// underlying detail text.
type ReceiverNotifier struct {
	url    string
	token  string
	client *http.Client
	logger *logrus.Logger
}

// NewReceiverNotifier creates a notifier posting to the given URL with
// the given shared token. A zero timeout uses DefaultTimeout.
func NewReceiverNotifier(url, token string, timeout time.Duration, logger *logrus.Logger) *ReceiverNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ReceiverNotifier{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SendAlert implements Notifier interface - posts the alert payload to
// the receiver
func (rn *ReceiverNotifier) SendAlert(alert model.Alert) error {
	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, rn.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, rn.token)

	resp, err := rn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("receiver returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	rn.logger.Debugf("Alert delivered to receiver: %s %s", alert.Type, alert.Class)
	return nil
}
