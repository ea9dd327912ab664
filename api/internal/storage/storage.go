package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"yolo-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// Storage keeps recent alerts in memory, bounded to the last maxAlerts
type Storage struct {
	mu        sync.RWMutex
	alerts    []Alert
	maxAlerts int
	logger    *logrus.Logger

	subs   map[*AlertSubscriber]bool
	subsMu sync.RWMutex
}

// Alert is a stored alert with its receiver-side identity
type Alert struct {
	ID       string    `json:"id"`
	Received time.Time `json:"received"`
	model.Alert
}

// ClassSummary aggregates stored alerts per detection class
type ClassSummary struct {
	Class         string    `json:"class"`
	Count         int       `json:"count"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	MaxConfidence float64   `json:"max_confidence"`
}

// AlertSubscriber receives newly stored alerts over its channel
type AlertSubscriber struct {
	ID      string
	Channel chan Alert
}

// NewStorage creates storage keeping the last maxAlerts alerts
func NewStorage(maxAlerts int, logger *logrus.Logger) *Storage {
	if maxAlerts <= 0 {
		maxAlerts = 10000
	}
	return &Storage{
		alerts:    make([]Alert, 0),
		maxAlerts: maxAlerts,
		logger:    logger,
		subs:      make(map[*AlertSubscriber]bool),
	}
}

// AddAlert stores an alert, assigns its ID, and notifies subscribers
func (s *Storage) AddAlert(a model.Alert) Alert {
	s.mu.Lock()

	stored := Alert{
		ID:       generateID(),
		Received: time.Now(),
		Alert:    a,
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = stored.Received
	}

	s.alerts = append(s.alerts, stored)

	// Keep only last maxAlerts
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}

	s.mu.Unlock()

	s.notifySubscribers(stored)
	return stored
}

// GetAlerts returns up to limit alerts, latest first, optionally
// filtered by class and alert type
func (s *Storage) GetAlerts(limit int, class, alertType string) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Alert, 0)

	// Iterate in reverse to get latest first
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		a := s.alerts[i]
		if class != "" && a.Class != class {
			continue
		}
		if alertType != "" && a.Type != alertType {
			continue
		}
		result = append(result, a)
	}

	return result
}

// GetAlertByID looks up a stored alert
func (s *Storage) GetAlertByID(id string) *Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			return &s.alerts[i]
		}
	}
	return nil
}

// Summary aggregates stored alerts per class, most frequent first
func (s *Storage) Summary() ([]ClassSummary, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byClass := make(map[string]*ClassSummary)
	for i := range s.alerts {
		a := s.alerts[i]
		info, ok := byClass[a.Class]
		if !ok {
			info = &ClassSummary{
				Class:     a.Class,
				FirstSeen: a.Timestamp,
				LastSeen:  a.Timestamp,
			}
			byClass[a.Class] = info
		}
		count := 1
		if a.Type == model.AlertTypeAggregate {
			count = a.Count
		}
		info.Count += count
		if a.Timestamp.Before(info.FirstSeen) {
			info.FirstSeen = a.Timestamp
		}
		if a.Timestamp.After(info.LastSeen) {
			info.LastSeen = a.Timestamp
		}
		if a.Confidence > info.MaxConfidence {
			info.MaxConfidence = a.Confidence
		}
	}

	result := make([]ClassSummary, 0, len(byClass))
	total := 0
	for _, info := range byClass {
		result = append(result, *info)
		total += info.Count
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result, total
}

// Subscribe registers a live alert subscriber
func (s *Storage) Subscribe(sub *AlertSubscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[sub] = true
}

// Unsubscribe removes a subscriber and closes its channel
func (s *Storage) Unsubscribe(sub *AlertSubscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.subs[sub] {
		delete(s.subs, sub)
		close(sub.Channel)
	}
}

func (s *Storage) notifySubscribers(a Alert) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for sub := range s.subs {
		select {
		case sub.Channel <- a:
		default:
			// Channel full, skip
		}
	}
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
