package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"statflow/internal/model"
)

type Config struct {
	Statflow StatflowConfig `yaml:"statflow"`
	Requests RequestsConfig `yaml:"requests"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Sink     SinkConfig     `yaml:"sink"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type StatflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type RequestsConfig struct {
	AveragePay      IndicatorConfig `yaml:"average_pay"`
	BirthRate       IndicatorConfig `yaml:"birth_rate"`
	DeathRate       IndicatorConfig `yaml:"death_rate"`
	BirthDeathRatio RatioConfig     `yaml:"birth_death_ratio"`
}

type IndicatorConfig struct {
	URL       string         `yaml:"url"`
	Data      map[string]any `yaml:"data"`
	MetricKey string         `yaml:"metric_key"`
}

type RatioConfig struct {
	MetricKey string `yaml:"metric_key"`
}

// TimeoutsConfig holds per-call timeouts in whole seconds, shared by every
// outbound call in a run.
type TimeoutsConfig struct {
	ConnectSec   int `yaml:"connect_sec"`
	RequestSec   int `yaml:"request_sec"`
	SinkTotalSec int `yaml:"request_sink_total"`
}

func (t TimeoutsConfig) Connect() time.Duration { return time.Duration(t.ConnectSec) * time.Second }
func (t TimeoutsConfig) Request() time.Duration { return time.Duration(t.RequestSec) * time.Second }
func (t TimeoutsConfig) SinkTotal() time.Duration {
	return time.Duration(t.SinkTotalSec) * time.Second
}

type SinkConfig struct {
	Host         string          `yaml:"host"`
	Username     string          `yaml:"username"`
	Password     string          `yaml:"-"`
	PushParallel bool            `yaml:"push_parallel"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// FetchRequest describes one outbound statistics request. The slice returned
// by FetchRequests is built once from configuration and read-only afterwards.
type FetchRequest struct {
	URL       string
	Data      map[string]any
	MetricKey string
	Kind      model.Kind
}

// FetchRequests returns the configured indicator requests. The derived ratio
// has no request of its own; it is computed from the birth and death series.
func (c *Config) FetchRequests() []FetchRequest {
	return []FetchRequest{
		{URL: c.Requests.AveragePay.URL, Data: c.Requests.AveragePay.Data,
			MetricKey: c.Requests.AveragePay.MetricKey, Kind: model.KindAveragePay},
		{URL: c.Requests.BirthRate.URL, Data: c.Requests.BirthRate.Data,
			MetricKey: c.Requests.BirthRate.MetricKey, Kind: model.KindBirthRate},
		{URL: c.Requests.DeathRate.URL, Data: c.Requests.DeathRate.Data,
			MetricKey: c.Requests.DeathRate.MetricKey, Kind: model.KindDeathRate},
	}
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(ResolveConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// The sink secret never comes from the file. The username doubles as the
	// push token and may also be supplied through the environment.
	if v := os.Getenv("SINK_USERNAME"); v != "" {
		config.Sink.Username = strings.TrimSpace(v)
	}
	config.Sink.Password = strings.TrimSpace(os.Getenv("SINK_PASSWORD"))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Statflow.Name == "" {
		return fmt.Errorf("statflow.name is required")
	}

	for _, ind := range []struct {
		name string
		conf IndicatorConfig
	}{
		{"requests.average_pay", cfg.Requests.AveragePay},
		{"requests.birth_rate", cfg.Requests.BirthRate},
		{"requests.death_rate", cfg.Requests.DeathRate},
	} {
		if ind.conf.URL == "" {
			return fmt.Errorf("%s.url is required", ind.name)
		}
		if ind.conf.MetricKey == "" {
			return fmt.Errorf("%s.metric_key is required", ind.name)
		}
	}
	if cfg.Requests.BirthDeathRatio.MetricKey == "" {
		return fmt.Errorf("requests.birth_death_ratio.metric_key is required")
	}

	if cfg.Timeouts.ConnectSec <= 0 {
		return fmt.Errorf("timeouts.connect_sec must be greater than 0")
	}
	if cfg.Timeouts.RequestSec <= 0 {
		return fmt.Errorf("timeouts.request_sec must be greater than 0")
	}
	if cfg.Timeouts.SinkTotalSec <= 0 {
		return fmt.Errorf("timeouts.request_sink_total must be greater than 0")
	}

	if cfg.Sink.Host == "" {
		return fmt.Errorf("sink.host is required")
	}
	if cfg.Sink.Username == "" {
		return fmt.Errorf("sink.username is required")
	}
	if cfg.Sink.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("sink.rate_limit.requests_per_second must not be negative")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		return fmt.Errorf("metrics.namespace is required when metrics are enabled")
	}

	return nil
}
