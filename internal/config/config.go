package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type StorageServiceConfig struct {
	Port        string
	LogDir      string
	DBDriver    string
	SQLitePath  string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	WorkerCfg   WorkerConfig
	MSPCacheTTL time.Duration
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Host     string
	Username string
	Password string
	Port     string
	Enabled  bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
	Enabled        bool
}

type WorkerConfig struct {
	PoolSize          int
	QueueSize         int
	SweepInterval     time.Duration
	ExpiryHorizonDays int
}

func New() *StorageServiceConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("[cfg] no .env file loaded: %v", err)
	}

	return &StorageServiceConfig{
		Port:       getEnvOrDefault("PORT", "8089"),
		LogDir:     getEnvOrDefault("LOG_DIR", "/agrisa/log/storage_service"),
		DBDriver:   getEnvOrDefault("DB_DRIVER", "postgres"),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "storage_service.db"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "storage_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", "rabbitmq"),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			Enabled:  getBoolOrDefault("RABBITMQ_ENABLED", true),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Enabled:  getBoolOrDefault("REDIS_ENABLED", true),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
			Enabled:        getBoolOrDefault("MINIO_ENABLED", true),
		},
		WorkerCfg: WorkerConfig{
			PoolSize:          getIntOrDefault("WORKER_POOL_SIZE", 2),
			QueueSize:         getIntOrDefault("WORKER_QUEUE_SIZE", 16),
			SweepInterval:     getPositiveDurationOrDefault("SWEEP_INTERVAL", 6*time.Hour),
			ExpiryHorizonDays: getIntOrDefault("EXPIRY_HORIZON_DAYS", 3),
		},
		MSPCacheTTL: getDurationOrDefault("MSP_CACHE_TTL", 30*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getPositiveDurationOrDefault also rejects zero and negative values, which
// time.NewTicker cannot take.
func getPositiveDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := getDurationOrDefault(key, defaultValue); value > 0 {
		return value
	}
	return defaultValue
}
