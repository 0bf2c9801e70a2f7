package app

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Kafka      KafkaConfig
	ClickHouse ClickHouseConfig
	Consumer   ConsumerConfig
	Player     PlayerConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig holds the S3 bucket where saved games live.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// KafkaConfig holds Kafka connection and topic settings.
type KafkaConfig struct {
	Brokers          []string
	TopicCheckpoints string
	TopicRetry       string
	TopicDead        string
	ProducerTimeout  time.Duration
}

// ClickHouseConfig holds ClickHouse connection settings. DSN, when set,
// takes precedence over the individual fields.
type ClickHouseConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ConsumerConfig holds Kafka consumer and batch processing settings.
type ConsumerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	ConsumerGroup string
	MetricsAddr   string
}

// PlayerConfig holds defaults for the tracked player.
type PlayerConfig struct {
	// ServingFirst is whether a new match starts with the player serving.
	ServingFirst bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level slog.Level
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are given. Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvList("KAFKA_BOOTSTRAP_SERVERS", []string{"kafka:29092"}),
			TopicCheckpoints: getEnv("KAFKA_TOPIC_CHECKPOINTS", "gtstats.checkpoints"),
			TopicRetry:       getEnv("KAFKA_TOPIC_RETRY", "gtstats.retry"),
			TopicDead:        getEnv("KAFKA_TOPIC_DEAD", "gtstats.dead"),
			ProducerTimeout:  getEnvDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		},
		ClickHouse: ClickHouseConfig{
			DSN:      getEnv("CLICKHOUSE_DSN", ""),
			Host:     getEnv("CLICKHOUSE_HOST", "clickhouse"),
			Port:     getEnvInt("CLICKHOUSE_PORT", 9000),
			Database: getEnv("CLICKHOUSE_DATABASE", "gtstats"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Consumer: ConsumerConfig{
			BatchSize:     getEnvInt("CONSUMER_BATCH_SIZE", 500),
			FlushInterval: getEnvDuration("CONSUMER_FLUSH_INTERVAL", 5*time.Second),
			MaxRetries:    getEnvInt("CONSUMER_MAX_RETRIES", 3),
			ConsumerGroup: getEnv("CONSUMER_GROUP", "gtstats-consumers"),
			MetricsAddr:   getEnv("CONSUMER_METRICS_ADDR", ":9091"),
		},
		Player: PlayerConfig{
			ServingFirst: getEnvBool("PLAYER_SERVING_FIRST", true),
		},
		Log: LogConfig{
			Level: ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		},
	}
}

// ValidateServer checks the settings the API server cannot run without.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("SERVER_PORT must be between 1 and 65535"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BOOTSTRAP_SERVERS is required"))
	}
	return errors.Join(errs...)
}

// ValidateConsumer checks the settings the consumer cannot run without.
func (c *Config) ValidateConsumer() error {
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BOOTSTRAP_SERVERS is required"))
	}
	if c.Kafka.TopicCheckpoints == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC_CHECKPOINTS is required"))
	}
	if c.Consumer.ConsumerGroup == "" {
		errs = append(errs, errors.New("CONSUMER_GROUP is required"))
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool accepts the forms strconv.ParseBool does ("1", "true", "F", ...).
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns a default value.
// Accepts formats like "10s", "5m", "1h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
