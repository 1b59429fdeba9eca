package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Port            string
	Env             string
	BaseDomain      string
	AllowedOrigins  []string
	MaintenanceMode bool
	MaxWebhookBytes int64
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	TimeZone     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Broker      string
	OrdersTopic string
}

type AWSConfig struct {
	Region                 string
	RoleArn                string
	QueueName              string
	EncryptionKeySecretID  string
	QueueWaitTimeSeconds   int32
	QueueVisibilityTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	EncryptionKey string
}

type WorkerConfig struct {
	QueueDriver  string
	Concurrency  int
	PollInterval time.Duration
	Lease        time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	POSTimeout   time.Duration
	LoyverseURL  string
	CareemURL    string
	CareemToken  string
	TalabatURL   string
	TalabatToken string
}

type LogConfig struct {
	Level string
	File  string
}

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	AWS      AWSConfig
	Security SecurityConfig
	Worker   WorkerConfig
	Log      LogConfig
}

// Load reads the process configuration. A .env file in the working directory
// is only consulted when API_ENV=local.
func Load() *Config {
	if os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			fmt.Printf("Warning: .env file not loaded: %s\n", err.Error())
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "9090"),
			Env:             getEnv("API_ENV", "development"),
			BaseDomain:      strings.ToLower(getEnv("APP_BASE_DOMAIN", "menusync.local")),
			AllowedOrigins:  getEnvAsList("APP_ALLOWED_ORIGINS"),
			MaintenanceMode: getEnvAsBool("MAINTENANCE_MODE", false),
			MaxWebhookBytes: int64(getEnvAsInt("SERVER_MAX_WEBHOOK_BYTES", 1<<20)),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DATABASE_HOST", "localhost"),
			Port:         getEnv("DATABASE_PORT", "5432"),
			User:         getEnv("DATABASE_USER", "postgres"),
			Password:     getEnv("DATABASE_PASSWORD", ""),
			Name:         getEnv("DATABASE_NAME", "menusync"),
			SSLMode:      getEnv("DATABASE_SSLMODE", "disable"),
			TimeZone:     getEnv("DATABASE_TIMEZONE", "UTC"),
			MaxIdleConns: getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 100),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_HOST", ""),
		},
		Kafka: KafkaConfig{
			Broker:      getEnv("KAFKA_BROKER", ""),
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "orders.ingested"),
		},
		AWS: AWSConfig{
			Region:                 getEnv("AWS_REGION", "me-south-1"),
			RoleArn:                getEnv("AWS_IAM_ROLE_ARN", ""),
			QueueName:              getEnv("AWS_POS_QUEUE_NAME", "PosPush"),
			EncryptionKeySecretID:  getEnv("AWS_ENCRYPTION_KEY_SECRET_ID", ""),
			QueueWaitTimeSeconds:   int32(getEnvAsInt("AWS_QUEUE_WAIT_SECONDS", 10)),
			QueueVisibilityTimeout: getEnvAsDuration("AWS_QUEUE_VISIBILITY_TIMEOUT", time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTL:      getEnvAsDuration("JWT_TTL", 12*time.Hour),
			EncryptionKey: getEnv("APP_ENCRYPTION_KEY", ""),
		},
		Worker: WorkerConfig{
			QueueDriver:  getEnv("QUEUE_DRIVER", "db"),
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 4),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			Lease:        getEnvAsDuration("WORKER_LEASE", time.Minute),
			MaxAttempts:  getEnvAsInt("WORKER_MAX_ATTEMPTS", 8),
			BackoffBase:  getEnvAsDuration("WORKER_BACKOFF_BASE", 30*time.Second),
			BackoffMax:   getEnvAsDuration("WORKER_BACKOFF_MAX", 30*time.Minute),
			POSTimeout:   getEnvAsDuration("WORKER_POS_TIMEOUT", 10*time.Second),
			LoyverseURL:  getEnv("LOYVERSE_API_URL", "https://api.loyverse.com"),
			CareemURL:    getEnv("CAREEM_CATALOG_URL", "https://catalog.careemnow.com"),
			CareemToken:  getEnv("CAREEM_TOKEN_URL", "https://identity.careem.com/token"),
			TalabatURL:   getEnv("TALABAT_CATALOG_URL", "https://integration.talabat.com"),
			TalabatToken: getEnv("TALABAT_TOKEN_URL", "https://integration.talabat.com/oauth/token"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
}

func (c *Config) GetDSN() string {
	d := c.Database
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
