package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"yolo-guard/internal/alert"
	"yolo-guard/internal/metrics"
	"yolo-guard/internal/pipeline"
	"yolo-guard/internal/rules"
	"yolo-guard/internal/tail"
	"yolo-guard/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", "configs/monitor.yaml", "Configuration file path (YAML)")
		inputFile  = flag.String("file", "", "Detection CSV file to tail (overrides config)")
		receiver   = flag.String("receiver", "", "Receiver alert URL (overrides config)")
		token      = flag.String("token", "", "Shared receiver token (overrides config)")
		interval   = flag.Float64("interval", 0, "Poll interval in seconds (overrides config)")
	)
	flag.Parse()

	// Token may also come from the environment or a .env file
	_ = godotenv.Load()

	config, err := utils.LoadMonitorConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		config = utils.GetDefaultMonitorConfig()
	} else {
		fmt.Printf("Loaded configuration from %s\n", *configFile)
	}

	if *inputFile != "" {
		config.Input.File = *inputFile
	}
	if *receiver != "" {
		config.Receiver.URL = *receiver
	}
	if *token != "" {
		config.Receiver.Token = *token
	}
	if config.Receiver.Token == "" {
		config.Receiver.Token = os.Getenv("YOLO_RECEIVER_TOKEN")
	}
	if *interval > 0 {
		config.Input.PollIntervalSeconds = *interval
	}

	logger := utils.NewLogger(config.Logging.Level)
	utils.ConfigureFormat(logger, config.Logging.Format)

	fmt.Printf("Detection monitor starting\n")
	fmt.Printf("Tailing: %s (every %.1fs)\n", config.Input.File, config.Input.PollIntervalSeconds)
	fmt.Printf("Receiver: %s\n", config.Receiver.URL)
	if len(config.Detection.Classes) > 0 {
		fmt.Printf("Watching classes: %s\n", strings.Join(config.Detection.Classes, ", "))
	} else {
		fmt.Println("Watching all classes")
	}
	fmt.Println("")

	registry := metrics.NewRegistry()
	monitorMetrics := metrics.NewMonitorMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping detection monitor...")
		cancel()
	}()

	if config.Metrics.Enabled {
		exporter := metrics.NewExporter(config.Metrics.Port, registry, logger)
		go func() {
			if err := exporter.Start(ctx); err != nil {
				logger.Errorf("Metrics exporter error: %v", err)
			}
		}()
	}

	engine := rules.NewEngine(rules.Config{
		Classes:        config.Detection.Classes,
		MinConfidence:  config.Detection.MinConfidence,
		RepeatWithin:   config.RepeatWithin(),
		CountWindow:    config.CountWindow(),
		CountThreshold: config.Detection.CountThreshold,
	}, logger, monitorMetrics)

	registerAlertNotifiers(engine, config, logger)

	reader := tail.NewReader(config.Input.File, logger)
	monitor := pipeline.NewMonitor(reader, engine, config.PollInterval(), logger, monitorMetrics)

	if err := monitor.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("Monitor failed: %v", err)
		os.Exit(1)
	}
}

func registerAlertNotifiers(engine *rules.Engine, config *utils.MonitorConfig, logger *logrus.Logger) {
	if config.Alerting.Channels.Log {
		engine.RegisterNotifier(alert.NewLogAlertNotifier(logger))
	}

	if config.Alerting.Channels.Receiver {
		engine.RegisterNotifier(alert.NewReceiverNotifier(
			config.Receiver.URL,
			config.Receiver.Token,
			config.ReceiverTimeout(),
			logger,
		))
	}
}
