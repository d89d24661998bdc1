package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store   StoreConfig
	Server  ServerConfig
	Vision  VisionConfig
	OCR     ProviderConfig
	Insight ProviderConfig
	Comply  ProviderConfig
	Queue   QueueConfig
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver string // "sqlite" | "postgres"
	DSN    string
}

// ServerConfig holds daemon server configuration.
type ServerConfig struct {
	GRPCAddr string
}

// VisionConfig holds on-device recognition configuration.
type VisionConfig struct {
	Tesseract        string
	TesseractLang    string
	TessdataDir      string
	Zbarimg          string
	ArtifactCacheDir string
	MinWordConf      float32
}

// ProviderConfig holds one cloud provider's endpoint configuration.
type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	TotalTimeout   time.Duration
	MaxAttempts    int
}

// QueueConfig holds offline-queue drain configuration.
type QueueConfig struct {
	ProbeInterval time.Duration
	ProbeAddr     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "sqlite"),
			DSN:    getEnv("STORE_DSN", "file:medscan.db"),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Vision: VisionConfig{
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:    getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			Zbarimg:          getEnv("ZBARIMG_BIN", "zbarimg"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			MinWordConf:      getEnvAsFloat32("VISION_MIN_WORD_CONF", 0),
		},
		OCR: ProviderConfig{
			BaseURL:        getEnv("CLOUD_OCR_URL", ""),
			APIKey:         getEnv("CLOUD_OCR_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("CLOUD_OCR_TIMEOUT", 60*time.Second),
			TotalTimeout:   getEnvAsDuration("CLOUD_OCR_TOTAL_TIMEOUT", 120*time.Second),
			MaxAttempts:    getEnvAsInt("CLOUD_OCR_MAX_ATTEMPTS", 3),
		},
		Insight: ProviderConfig{
			BaseURL:        getEnv("VISION_INSIGHT_URL", ""),
			APIKey:         getEnv("VISION_INSIGHT_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("VISION_TIMEOUT", 90*time.Second),
			TotalTimeout:   getEnvAsDuration("VISION_TOTAL_TIMEOUT", 180*time.Second),
			MaxAttempts:    getEnvAsInt("VISION_MAX_ATTEMPTS", 3),
		},
		Comply: ProviderConfig{
			BaseURL:        getEnv("VISION_COMPLIANCE_URL", ""),
			APIKey:         getEnv("VISION_COMPLIANCE_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("VISION_TIMEOUT", 90*time.Second),
			TotalTimeout:   getEnvAsDuration("VISION_TOTAL_TIMEOUT", 180*time.Second),
			MaxAttempts:    getEnvAsInt("VISION_MAX_ATTEMPTS", 3),
		},
		Queue: QueueConfig{
			ProbeInterval: getEnvAsDuration("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second),
			ProbeAddr:     getEnv("CONNECTIVITY_PROBE_ADDR", "1.1.1.1:443"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "STORE_DSN is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
