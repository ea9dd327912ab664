package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"yolo-guard/api/internal/storage"
	"yolo-guard/internal/alert"
	"yolo-guard/internal/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	store    *storage.Storage
	token    string
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHandlers(store *storage.Storage, token string, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:  store,
		token:  token,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// PostAlert ingests one alert from the monitor. The shared token is
// required; bad tokens are rejected before the body is read.
func (h *Handlers) PostAlert(w http.ResponseWriter, r *http.Request) {
	if !h.tokenOK(r) {
		h.logger.Warnf("Rejected alert from %s: bad token", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var a model.Alert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert body: "+err.Error())
		return
	}
	if a.Type != model.AlertTypeSingle && a.Type != model.AlertTypeAggregate {
		writeError(w, http.StatusBadRequest, "unknown alert type: "+a.Type)
		return
	}
	if a.Class == "" {
		writeError(w, http.StatusBadRequest, "missing class")
		return
	}

	stored := h.store.AddAlert(a)
	h.logger.Infof("Stored %s alert for %s (id=%s)", stored.Type, stored.Class, stored.ID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "stored",
		"id":     stored.ID,
	})
}

// GetAlerts returns recent alerts, latest first
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	class := r.URL.Query().Get("class")
	alertType := r.URL.Query().Get("type")

	alerts := h.store.GetAlerts(limit, class, alertType)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"count": len(alerts),
	})
}

// GetAlert returns a single stored alert by ID
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	a := h.store.GetAlertByID(id)
	if a == nil {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// GetSummary returns per-class totals, most frequent first
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, total := h.store.Summary()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"total":   total,
	})
}

// StreamAlerts pushes newly stored alerts over a WebSocket
func (h *Handlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	h.logger.Infof("WebSocket alert stream opened from %s", r.RemoteAddr)
	defer conn.Close()

	sub := &storage.AlertSubscriber{
		ID:      r.RemoteAddr,
		Channel: make(chan storage.Alert, 64),
	}
	h.store.Subscribe(sub)
	defer h.store.Unsubscribe(sub)

	// Drain client frames so close/ping control messages are handled
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case a, ok := <-sub.Channel:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(a); err != nil {
				h.logger.Debugf("WebSocket write failed for %s: %v", r.RemoteAddr, err)
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) tokenOK(r *http.Request) bool {
	got := r.Header.Get(alert.TokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
