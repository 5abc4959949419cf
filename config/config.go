package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBHost            string
	DBPort            string
	DBUser            string
	DBPass            string
	DBName            string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	MinioHost         string
	MinioPort         string
	MinioUsername     string
	MinioPassword     string
	MinioUseSSL       bool
	BucketName        string
	RabbitMQURL       string
	RabbitMQHost      string
	RabbitMQPort      string
	RabbitMQUser      string
	RabbitMQPass      string
	RabbitMQVhost     string
	RabbitMQPrefetch  int
	WorkerConcurrency int
	WorkerRate        float64
	WorkerBurst       int
	LogLevel          string
	LogFormat         string
	MetricsAddr       string
}

var AppConfig Config

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// InitConfig loads configuration and initializes sub-configs.
func InitConfig() {
	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}
	AppConfig = Config{
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBUser:            getEnv("DB_USER", "root"),
		DBPass:            getEnv("DB_PASS", "root"),
		DBName:            getEnv("DB_NAME", "Go_PanStore"),
		RedisHost:         getEnv("REDIS_HOST", ""),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		MinioHost:         getEnv("MINIO_HOST", "localhost"),
		MinioPort:         getEnv("MINIO_PORT", "9000"),
		MinioUsername:     getEnv("MINIO_USERNAME", "minioadmin"),
		MinioPassword:     getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		BucketName:        getEnv("BUCKET_NAME", "netdisk"),
		RabbitMQURL:       rabbitURL,
		RabbitMQHost:      rabbitHost,
		RabbitMQPort:      rabbitPort,
		RabbitMQUser:      rabbitUser,
		RabbitMQPass:      rabbitPass,
		RabbitMQVhost:     rabbitVhost,
		RabbitMQPrefetch:  getEnvInt("RABBITMQ_PREFETCH", 4),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerRate:        getEnvFloat("WORKER_RATE", 1),
		WorkerBurst:       getEnvInt("WORKER_BURST", 1),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9108"),
	}

	InitStoragePolicy()
}
