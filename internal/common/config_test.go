package common

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "file:medscan.db" {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.OCR.RequestTimeout != 60*time.Second || cfg.OCR.MaxAttempts != 3 {
		t.Errorf("unexpected OCR defaults: %+v", cfg.OCR)
	}
	if cfg.Insight.RequestTimeout != 90*time.Second {
		t.Errorf("unexpected vision timeout: %v", cfg.Insight.RequestTimeout)
	}
	if cfg.Queue.ProbeInterval != 15*time.Second {
		t.Errorf("unexpected probe interval: %v", cfg.Queue.ProbeInterval)
	}
	if cfg.Vision.MinWordConf != 0 {
		t.Errorf("word confidence floor should default to 0, got %v", cfg.Vision.MinWordConf)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://localhost/medscan")
	t.Setenv("CLOUD_OCR_TIMEOUT", "5s")
	t.Setenv("CLOUD_OCR_MAX_ATTEMPTS", "2")
	t.Setenv("VISION_MIN_WORD_CONF", "0.75")

	cfg := LoadConfig()
	if cfg.Store.Driver != "postgres" {
		t.Errorf("driver override ignored: %q", cfg.Store.Driver)
	}
	if cfg.OCR.RequestTimeout != 5*time.Second || cfg.OCR.MaxAttempts != 2 {
		t.Errorf("OCR overrides ignored: %+v", cfg.OCR)
	}
	if cfg.Vision.MinWordConf != 0.75 {
		t.Errorf("confidence override ignored: %v", cfg.Vision.MinWordConf)
	}
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CLOUD_OCR_TIMEOUT", "not-a-duration")
	t.Setenv("CLOUD_OCR_MAX_ATTEMPTS", "many")

	cfg := LoadConfig()
	if cfg.OCR.RequestTimeout != 60*time.Second || cfg.OCR.MaxAttempts != 3 {
		t.Errorf("malformed values must keep defaults: %+v", cfg.OCR)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(*Config) {}, false},
		{"bad driver", func(c *Config) { c.Store.Driver = "dynamo" }, true},
		{"missing dsn", func(c *Config) { c.Store.DSN = "" }, true},
		{"missing grpc addr", func(c *Config) { c.Server.GRPCAddr = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
