package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MonitorConfig is the YAML configuration shared by the monitor binary
// and the receiver API
type MonitorConfig struct {
	Input     InputYAMLConfig     `yaml:"input"`
	Receiver  ReceiverYAMLConfig  `yaml:"receiver"`
	Detection DetectionYAMLConfig `yaml:"detection"`
	Alerting  AlertingYAMLConfig  `yaml:"alerting"`
	Metrics   MetricsYAMLConfig   `yaml:"metrics"`
	Logging   LoggingYAMLConfig   `yaml:"logging"`
}

type InputYAMLConfig struct {
	File                string  `yaml:"file"`
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds"`
}

type ReceiverYAMLConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Port           string `yaml:"port"`
	MaxAlerts      int    `yaml:"max_alerts"`
}

type DetectionYAMLConfig struct {
	Classes             []string `yaml:"classes"`
	MinConfidence       float64  `yaml:"min_confidence"`
	RepeatWithinSeconds float64  `yaml:"repeat_within_seconds"`
	CountWindowSeconds  float64  `yaml:"count_window_seconds"`
	CountThreshold      int      `yaml:"count_threshold"`
}

type AlertingYAMLConfig struct {
	Channels AlertChannelsYAML `yaml:"channels"`
}

type AlertChannelsYAML struct {
	Log      bool `yaml:"log"`
	Receiver bool `yaml:"receiver"`
}

type MetricsYAMLConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type LoggingYAMLConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadMonitorConfig loads the configuration from a YAML file
func LoadMonitorConfig(filename string) (*MonitorConfig, error) {
	if filename == "" {
		filename = "configs/monitor.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var config MonitorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %v", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return &config, nil
}

// Validate fills defaults for unset fields
func (c *MonitorConfig) Validate() error {
	if c.Input.File == "" {
		c.Input.File = "/tmp/wifigui-logs/yolo_detections.csv"
	}
	if c.Input.PollIntervalSeconds <= 0 {
		c.Input.PollIntervalSeconds = 1.0
	}

	if c.Receiver.URL == "" {
		c.Receiver.URL = "http://localhost:5001/api/v1/alerts"
	}
	if c.Receiver.TimeoutSeconds <= 0 {
		c.Receiver.TimeoutSeconds = 3
	}
	if c.Receiver.Port == "" {
		c.Receiver.Port = "5001"
	}
	if c.Receiver.MaxAlerts <= 0 {
		c.Receiver.MaxAlerts = 10000
	}

	if c.Detection.MinConfidence <= 0 {
		c.Detection.MinConfidence = 0.30
	}
	if c.Detection.RepeatWithinSeconds <= 0 {
		c.Detection.RepeatWithinSeconds = 5
	}
	if c.Detection.CountWindowSeconds <= 0 {
		c.Detection.CountWindowSeconds = 10
	}
	if c.Detection.CountThreshold <= 0 {
		c.Detection.CountThreshold = 5
	}

	if c.Metrics.Port == "" {
		c.Metrics.Port = "9107"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	return nil
}

// GetDefaultMonitorConfig returns the stock configuration
func GetDefaultMonitorConfig() *MonitorConfig {
	config := &MonitorConfig{
		Alerting: AlertingYAMLConfig{
			Channels: AlertChannelsYAML{
				Log:      true,
				Receiver: true,
			},
		},
	}
	_ = config.Validate()
	return config
}

// PollInterval returns the tail poll cadence as a duration
func (c *MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.Input.PollIntervalSeconds * float64(time.Second))
}

// ReceiverTimeout returns the dispatch timeout as a duration
func (c *MonitorConfig) ReceiverTimeout() time.Duration {
	return time.Duration(c.Receiver.TimeoutSeconds) * time.Second
}

// RepeatWithin returns the duplicate-suppression window as a duration
func (c *MonitorConfig) RepeatWithin() time.Duration {
	return time.Duration(c.Detection.RepeatWithinSeconds * float64(time.Second))
}

// CountWindow returns the sliding-window span as a duration
func (c *MonitorConfig) CountWindow() time.Duration {
	return time.Duration(c.Detection.CountWindowSeconds * float64(time.Second))
}
