package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Timestep data source.
	DataBaseURL      string
	DataAllowedHosts []string // hosts besides DataBaseURL's that requests may name
	FetchTimeout     time.Duration

	WorkerQueueSize int

	// Kafka transport.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaRequestTopic  string
	KafkaResponseTopic string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	// WebSocket transport.
	WSEnabled         bool
	WSMaxMessageBytes int64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "15s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	queueSize, err := parsePositiveInt("WORKER_QUEUE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	maxMessage, err := parsePositiveInt("WS_MAX_MESSAGE_BYTES", 65536)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataBaseURL:      sharedcfg.EnvOrDefault("DATA_BASE_URL", "http://localhost:8000/data/"),
		DataAllowedHosts: sharedcfg.ParseBrokers(os.Getenv("DATA_ALLOWED_HOSTS")),
		FetchTimeout:     fetchTimeout,

		WorkerQueueSize: queueSize,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRequestTopic:  sharedcfg.EnvOrDefault("KAFKA_REQUEST_TOPIC", "contour-requests"),
		KafkaResponseTopic: sharedcfg.EnvOrDefault("KAFKA_RESPONSE_TOPIC", "contour-responses"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "isobar-contours"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		WSEnabled:         sharedcfg.EnvOrDefault("WS_ENABLED", "true") == "true",
		WSMaxMessageBytes: int64(maxMessage),
	}

	if u, err := url.Parse(cfg.DataBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("DATA_BASE_URL must be an absolute URL")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaRequestTopic == "" {
			return nil, errors.New("KAFKA_REQUEST_TOPIC is required")
		}
		if cfg.KafkaResponseTopic == "" {
			return nil, errors.New("KAFKA_RESPONSE_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
