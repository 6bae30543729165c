package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Storage      StorageConfig
	SFU          SFUConfig
	Coordination CoordinationConfig
}

type SFUConfig struct {
	WorkerControlURL string
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
}

type StorageConfig struct {
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// CoordinationConfig tunes the cross-server coordination layer: how often a
// server heartbeats, when a silent server is considered dead, how long a
// transport-connect handshake may stay pending, and the sweep cadence.
type CoordinationConfig struct {
	HeartbeatInterval  time.Duration
	StalenessThreshold time.Duration
	HandshakeTimeout   time.Duration
	SweepInterval      time.Duration
	SweepJitter        time.Duration
	UploadTokenTTL     time.Duration
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "jollyroger"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", "dev-secret-do-not-use"),
			AccessTokenTTL: getEnvAsDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			S3Bucket:    getEnv("S3_BUCKET", "jolly-roger-assets"),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		SFU: SFUConfig{
			WorkerControlURL: getEnv("SFU_WORKER_URL", "http://localhost:3500"),
		},
		Coordination: CoordinationConfig{
			HeartbeatInterval:  getEnvAsDuration("HEARTBEAT_INTERVAL", 5*time.Second),
			StalenessThreshold: getEnvAsDuration("STALENESS_THRESHOLD", 15*time.Second),
			HandshakeTimeout:   getEnvAsDuration("HANDSHAKE_TIMEOUT", 30*time.Second),
			SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 15*time.Second),
			SweepJitter:        getEnvAsDuration("SWEEP_JITTER", 15*time.Second),
			UploadTokenTTL:     getEnvAsDuration("UPLOAD_TOKEN_TTL", time.Minute),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
