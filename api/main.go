package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yolo-guard/api/internal/handlers"
	"yolo-guard/api/internal/storage"
	"yolo-guard/internal/metrics"
	"yolo-guard/internal/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configFile = flag.String("config", "configs/monitor.yaml", "Configuration file path (YAML)")
		port       = flag.String("port", "", "Receiver port (overrides config)")
		token      = flag.String("token", "", "Shared receiver token (overrides config)")
	)
	flag.Parse()

	_ = godotenv.Load()

	config, err := utils.LoadMonitorConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		config = utils.GetDefaultMonitorConfig()
	}

	if *port != "" {
		config.Receiver.Port = *port
	}
	if *token != "" {
		config.Receiver.Token = *token
	}
	if config.Receiver.Token == "" {
		config.Receiver.Token = os.Getenv("YOLO_RECEIVER_TOKEN")
	}

	logger := utils.NewLogger(config.Logging.Level)
	utils.ConfigureFormat(logger, config.Logging.Format)

	if config.Receiver.Token == "" {
		logger.Warn("No receiver token configured; all alert posts will be rejected")
	}

	store := storage.NewStorage(config.Receiver.MaxAlerts, logger)
	h := handlers.NewHandlers(store, config.Receiver.Token, logger)

	registry := metrics.NewRegistry()

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/alerts", h.PostAlert).Methods("POST")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/summary", h.GetSummary).Methods("GET")
	api.HandleFunc("/alerts/{id:[0-9]+}", h.GetAlert).Methods("GET")
	api.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", config.Receiver.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	logger.Infof("Alert receiver starting on port %s", config.Receiver.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down alert receiver...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
