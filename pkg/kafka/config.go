package kafka

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"
	EnvProducerAsync        = "KAFKA_PRODUCER_ASYNC"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // all replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
)

type ProducerConfig struct {
	Brokers []string

	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	Compression  string // "none", "gzip", "snappy", "lz4", "zstd"
	Async        bool
}

// LoadProducerConfig reads producer tuning from the environment.
func LoadProducerConfig(brokers []string) *ProducerConfig {
	return &ProducerConfig{
		Brokers:      brokers,
		MaxAttempts:  getEnvInt(EnvProducerMaxAttempts, DefaultProducerMaxAttempts),
		BatchTimeout: getEnvDuration(EnvProducerBatchTimeout, DefaultProducerBatchTimeout),
		RequireAcks:  getEnvInt(EnvProducerRequireAcks, DefaultProducerRequireAcks),
		Compression:  getEnvStr(EnvProducerCompression, DefaultProducerCompression),
		Async:        getEnvBool(EnvProducerAsync, DefaultProducerAsync),
	}
}

func (cfg *ProducerConfig) Validate() error {
	var errors []string

	if len(cfg.Brokers) == 0 {
		errors = append(errors, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errors = append(errors, fmt.Sprintf("Broker %d cannot be empty", i))
		}
	}

	if cfg.MaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("MaxAttempts must be positive, got: %d", cfg.MaxAttempts))
	}
	if cfg.BatchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("BatchTimeout must be positive, got: %s", cfg.BatchTimeout))
	}

	validCompressions := map[string]bool{
		"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true,
	}
	if !validCompressions[cfg.Compression] {
		errors = append(errors, fmt.Sprintf("Compression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.Compression))
	}

	validAcks := map[int]bool{-1: true, 0: true, 1: true}
	if !validAcks[cfg.RequireAcks] {
		errors = append(errors, fmt.Sprintf("RequireAcks must be -1, 0, or 1, got: %d", cfg.RequireAcks))
	}

	if len(errors) > 0 {
		errMsg := "Kafka configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
