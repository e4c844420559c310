package config

import (
	"fmt"
	"os"
	"regexp"
	"roomly/pkg/client"
	"roomly/pkg/logger"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreDriver string
	LockTimeout time.Duration

	PostgresDSN string

	MongoURI          string
	MongoDatabaseName string
	ConnTimeout       time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventsDriver   string
	KafkaBrokers   []string
	EventsTopic    string
	EventsDLQTopic string
	AMQPURL        string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DefaultPageSize int
	MaxPageSize     int

	Log    *logger.Logger
	Client *client.Client
}

// Load builds the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load(serviceName string) *Config {
	envFileLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:      getEnvStr(EnvPort, DefaultPort),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		StoreDriver: strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),
		LockTimeout: getEnvDuration(EnvLockTimeout, DefaultLockTimeout),

		PostgresDSN: getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		ConnTimeout:       getEnvDuration(EnvConnTimeout, DefaultConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		EventsDriver:   strings.ToLower(getEnvStr(EnvEventsDriver, DefaultEventsDriver)),
		KafkaBrokers:   getEnvList(EnvKafkaBrokers, DefaultKafkaBrokers),
		EventsTopic:    getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic: getEnvStr(EnvEventsDLQTopic, ""),
		AMQPURL:        getEnvStr(EnvAMQPURL, DefaultAMQPURL),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		DefaultPageSize: getEnvNum(EnvDefaultPageSize, DefaultPageSize),
		MaxPageSize:     getEnvNum(EnvMaxPageSize, DefaultMaxPage),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})

	if envFileLoaded {
		cfg.Log.Debug("Loaded configuration overrides from .env file")
	}
	return cfg
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.ConnTimeout)
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.ConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// SetStore opens the connection required by the configured store driver.
func (cfg *Config) SetStore() {
	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.SetPostgres()
	case StoreMongo:
		cfg.SetMongo()
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if !slices.Contains([]string{StoreMemory, StorePostgres, StoreMongo}, cfg.StoreDriver) {
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of memory, postgres, mongo, got: %s", cfg.StoreDriver))
	}

	switch cfg.StoreDriver {
	case StorePostgres:
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresDSN) {
			errors = append(errors, fmt.Sprintf("PostgresDSN must start with 'postgres://' or 'postgresql://', got: %s", redactURI(cfg.PostgresDSN)))
		}
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}

	if !slices.Contains([]string{EventsNone, EventsKafka, EventsAMQP}, cfg.EventsDriver) {
		errors = append(errors, fmt.Sprintf("EventsDriver must be one of none, kafka, amqp, got: %s", cfg.EventsDriver))
	}
	if cfg.EventsDriver == EventsKafka && len(cfg.KafkaBrokers) == 0 {
		errors = append(errors, "KafkaBrokers cannot be empty when EventsDriver is kafka")
	}
	if cfg.EventsDriver != EventsNone && cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty when events are enabled")
	}

	if cfg.ConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ConnTimeout must be positive, got: %s", cfg.ConnTimeout))
	}
	if cfg.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockTimeout must be positive, got: %s", cfg.LockTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.DefaultPageSize <= 0 {
		errors = append(errors, fmt.Sprintf("DefaultPageSize must be positive, got: %d", cfg.DefaultPageSize))
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		errors = append(errors, fmt.Sprintf("MaxPageSize (%d) must be >= DefaultPageSize (%d)", cfg.MaxPageSize, cfg.DefaultPageSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"store_driver", cfg.StoreDriver,
		"lock_timeout", cfg.LockTimeout,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"conn_timeout", cfg.ConnTimeout,
		"redis_enabled", cfg.RedisAddr != "",
		"events_driver", cfg.EventsDriver,
		"kafka_brokers", cfg.KafkaBrokers,
		"events_topic", cfg.EventsTopic,
		"amqp_url", redactURI(cfg.AMQPURL),
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"default_page_size", cfg.DefaultPageSize,
		"max_page_size", cfg.MaxPageSize,
	)
}

var credentialRegex = regexp.MustCompile(`^([a-z0-9+.-]+://)[^:@/]+:[^@]+@`)

// redactURI hides user:password credentials embedded in connection URIs.
func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

// NormalizePageSize applies the configured default and upper bound.
func (cfg *Config) NormalizePageSize(size int) int {
	if size <= 0 {
		return cfg.DefaultPageSize
	}
	return min(size, cfg.MaxPageSize)
}

func NormalizePageNumber(page int) int {
	return max(0, page)
}
