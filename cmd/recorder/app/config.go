package app

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = "127.0.0.1:12345"
	defaultBacklogSize  = 100
	defaultPollRateHz   = 60
	defaultSubjectID    = "unknown"
	defaultTaskType     = "sos"
	defaultMaxBatchSize = 100
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Network  NetworkConfig `yaml:"network"`
	Session  SessionConfig `yaml:"session"`
	Storage  StorageConfig `yaml:"storage"`
	Poll     PollConfig    `yaml:"poll"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel LogLevel `yaml:"logLevel"`
}

// NetworkConfig represents the telemetry listener settings
type NetworkConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	BacklogSize int    `yaml:"backlogSize"`
}

// SessionConfig identifies the experiment run being recorded
type SessionConfig struct {
	SubjectID string `yaml:"subjectID"`
	TaskType  string `yaml:"taskType"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
}

// PollConfig controls the consumer loop that drains the receiver
type PollConfig struct {
	RateHz int `yaml:"rateHz"`
}

type LogLevel slog.Level

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value.Value)); err != nil {
		return fmt.Errorf("app.LogLevel: failed to parse: %s", err)
	}

	*l = LogLevel(level)
	return nil
}

func (l LogLevel) MarshalYAML() (interface{}, error) {
	return slog.Level(l).String(), nil
}

// Level returns the value as a slog.Level
func (l LogLevel) Level() slog.Level {
	return slog.Level(l)
}

// LoadConfig reads and validates the configuration file at path, filling
// in defaults for omitted fields.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		Network: NetworkConfig{
			ListenAddr:  defaultListenAddr,
			BacklogSize: defaultBacklogSize,
		},
		Session: SessionConfig{
			SubjectID: defaultSubjectID,
			TaskType:  defaultTaskType,
		},
		Storage: StorageConfig{
			MaxBatchSize: defaultMaxBatchSize,
		},
		Poll: PollConfig{
			RateHz: defaultPollRateHz,
		},
	}
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := net.ResolveUDPAddr("udp", c.Network.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Network.ListenAddr, err)
	}
	if c.Network.BacklogSize <= 0 {
		return fmt.Errorf("backlog size must be positive: %d given", c.Network.BacklogSize)
	}
	if c.Poll.RateHz <= 0 {
		return fmt.Errorf("poll rate must be positive: %d given", c.Poll.RateHz)
	}
	if c.Storage.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive: %d given", c.Storage.MaxBatchSize)
	}
	if c.Session.SubjectID == "" {
		return fmt.Errorf("subject ID must not be empty")
	}
	if c.Session.TaskType == "" {
		return fmt.Errorf("task type must not be empty")
	}
	return nil
}
