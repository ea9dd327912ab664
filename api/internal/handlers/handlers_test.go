package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"yolo-guard/api/internal/storage"
	"yolo-guard/internal/alert"
	"yolo-guard/internal/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const testToken = "sekrit"

func newTestServer(t *testing.T) (*httptest.Server, *storage.Storage) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store := storage.NewStorage(100, logger)
	h := NewHandlers(store, testToken, logger)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/alerts", h.PostAlert).Methods("POST")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/summary", h.GetSummary).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}", h.GetAlert).Methods("GET")
	api.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func postAlert(t *testing.T, srv *httptest.Server, token string, a model.Alert) *http.Response {
	t.Helper()
	body, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/alerts", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(alert.TokenHeader, token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func sampleAlert() model.Alert {
	return model.NewSingleAlert(&model.DetectionRow{
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Class:      "person",
		Confidence: 0.9,
		BBox:       model.BBox{X1: 10, Y1: 10, X2: 20, Y2: 20},
	})
}

func TestPostAlertRejectsBadToken(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postAlert(t, srv, "wrong", sampleAlert())
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = postAlert(t, srv, "", sampleAlert())
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", resp.StatusCode)
	}

	if got := store.GetAlerts(10, "", ""); len(got) != 0 {
		t.Fatalf("rejected alerts were stored: %v", got)
	}
}

func TestPostAlertStores(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postAlert(t, srv, testToken, sampleAlert())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "stored" || out["id"] == "" {
		t.Fatalf("response = %v", out)
	}

	stored := store.GetAlerts(10, "", "")
	if len(stored) != 1 || stored[0].Class != "person" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestPostAlertRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/alerts", strings.NewReader("{not json"))
	req.Header.Set(alert.TokenHeader, testToken)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	bad := sampleAlert()
	bad.Type = "verbose"
	resp = postAlert(t, srv, testToken, bad)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d, want 400", resp.StatusCode)
	}
}

func TestGetAlertsAndByID(t *testing.T) {
	srv, store := newTestServer(t)

	stored := store.AddAlert(sampleAlert())

	resp, err := srv.Client().Get(srv.URL + "/api/v1/alerts?class=person")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var list struct {
		Items []storage.Alert `json:"items"`
		Count int             `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Items[0].ID != stored.ID {
		t.Fatalf("list = %+v", list)
	}

	resp, err = srv.Client().Get(srv.URL + "/api/v1/alerts/" + stored.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by id status = %d", resp.StatusCode)
	}

	resp, err = srv.Client().Get(srv.URL + "/api/v1/alerts/12345")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing id status = %d, want 404", resp.StatusCode)
	}
}

func TestGetSummary(t *testing.T) {
	srv, store := newTestServer(t)
	store.AddAlert(sampleAlert())
	store.AddAlert(sampleAlert())

	resp, err := srv.Client().Get(srv.URL + "/api/v1/alerts/summary")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Summary []storage.ClassSummary `json:"summary"`
		Total   int                    `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Summary) != 1 || out.Summary[0].Class != "person" {
		t.Fatalf("summary = %+v", out)
	}
}

func TestStreamAlertsPushesStoredAlerts(t *testing.T) {
	srv, store := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream/alerts"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the handler a moment to register its subscriber
	time.Sleep(50 * time.Millisecond)
	stored := store.AddAlert(sampleAlert())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got storage.Alert
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != stored.ID || got.Class != "person" {
		t.Fatalf("streamed alert = %+v", got)
	}
}
