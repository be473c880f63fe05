package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

type Config struct {
	ServerPort      string `yaml:"server_port"`
	FirebaseProject string `yaml:"firebase_project_id"`
	Environment     string `yaml:"environment"`
	LogLevel        string `yaml:"log_level"`
	StoreDriver     string `yaml:"store_driver"`
	StorageBucket   string `yaml:"storage_bucket"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	// AllowedOrigins gates CORS and websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Credentials are read from env only, never from the YAML file.
	ServiceAccountJSON string `yaml:"-"`
	ServiceAccountPath string `yaml:"-"`

	SendRatePerMinute   int `yaml:"send_rate_per_min"`
	FollowRatePerMinute int `yaml:"follow_rate_per_min"`
	DeleteBatchSize     int `yaml:"delete_batch_size"`
}

// Load reads .env, then the process environment, then the optional YAML
// file named by CONFIG_FILE. Values in the file override the environment.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		FirebaseProject:     getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StoreDriver:         getEnv("STORE_DRIVER", StoreFirestore),
		StorageBucket:       getEnv("STORAGE_BUCKET", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		AllowedOrigins:      getEnvAsList("ALLOWED_ORIGINS"),
		ServiceAccountJSON:  getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath:  getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		SendRatePerMinute:   getEnvAsInt("SEND_RATE_PER_MIN", 30),
		FollowRatePerMinute: getEnvAsInt("FOLLOW_RATE_PER_MIN", 20),
		DeleteBatchSize:     getEnvAsInt("DELETE_BATCH_SIZE", 500),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the combination of settings, not credentials reachability.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.DeleteBatchSize <= 0 || c.DeleteBatchSize > 500 {
		return fmt.Errorf("delete batch size must be in 1..500, got %d", c.DeleteBatchSize)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
