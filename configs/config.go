package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type X struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	UploadURL    string
	TokenURL     string
	RPS          float64
	Burst        int
	Timeout      time.Duration
}

type Config struct {
	X                      X
	R2                     R2
	PostgresURI            string
	RedisURI               string
	QueueName              string
	WorkerConcurrency      int
	HTTPAddr               string
	MetricsAddr            string
	FrontendURL            string
	SecretKey              string
	CookieName             string
	LogLevel               string
	CacheTTL               time.Duration
	EngagementRefreshSpec  string
	EngagementRefreshLimit int
	TokenRefreshSpec       string
}

func LoadConfig() *Config {
	return &Config{
		X: X{
			ClientID:     getEnv("X_CLIENT_ID", ""),
			ClientSecret: getEnv("X_CLIENT_SECRET", ""),
			APIBaseURL:   getEnv("X_API_BASE_URL", "https://api.twitter.com/2"),
			UploadURL:    getEnv("X_UPLOAD_URL", "https://upload.twitter.com/1.1/media/upload.json"),
			TokenURL:     getEnv("X_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
			RPS:          getEnvFloat("X_API_RPS", 2),
			Burst:        getEnvInt("X_API_BURST", 10),
			Timeout:      getEnvDuration("X_API_TIMEOUT", 15*time.Second),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		PostgresURI:            getEnv("POSTGRES_URI", ""),
		RedisURI:               getEnv("REDIS_URI", "localhost:6379"),
		QueueName:              getEnv("QUEUE_NAME", "default"),
		WorkerConcurrency:      getEnvInt("WORKER_CONCURRENCY", 10),
		HTTPAddr:               getEnv("HTTP_ADDR", ":3000"),
		MetricsAddr:            getEnv("METRICS_ADDR", ":9090"),
		FrontendURL:            getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:              getEnv("SECRET_KEY", ""),
		CookieName:             getEnv("COOKIE_NAME", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		CacheTTL:               getEnvDuration("CACHE_TTL", 5*time.Minute),
		EngagementRefreshSpec:  getEnv("ENGAGEMENT_REFRESH_SPEC", "@every 1h"),
		EngagementRefreshLimit: getEnvInt("ENGAGEMENT_REFRESH_LIMIT", 20),
		TokenRefreshSpec:       getEnv("TOKEN_REFRESH_SPEC", "@every 10m"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil && i > 0 {
		return i
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
