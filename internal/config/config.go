package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Duration is a time.Duration that reads "30s" style strings or plain
// seconds from JSON.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	}
	return fmt.Errorf("invalid duration %s", string(b))
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port          int    `json:"port" validate:"min=1,max=65535"`
		Host          string `json:"host"`
		MaxBodyBytes  int64  `json:"max_body_bytes" validate:"gte=0"`
		RedirectHTTPS bool   `json:"redirect_https"`
	} `json:"server"`
	Database struct {
		DSN string `json:"dsn" validate:"required"`
	} `json:"database"`
	JWT struct {
		Secret      string   `json:"secret" validate:"required"`
		TokenExpiry Duration `json:"token_expiry"`
	} `json:"jwt"`
	Logging struct {
		Level   string `json:"level" validate:"omitempty,oneof=debug info warn warning error"`
		Path    string `json:"path"`
		Console bool   `json:"console"`
	} `json:"logging"`
	Gateway struct {
		Scheme        string   `json:"scheme" validate:"omitempty,oneof=http https"`
		Host          string   `json:"host"`
		Port          int      `json:"port" validate:"gte=0,max=65535"`
		Username      string   `json:"username"`
		Password      string   `json:"password"`
		ProbeTimeout  Duration `json:"probe_timeout"`
		SendTimeout   Duration `json:"send_timeout"`
		HealthTimeout Duration `json:"health_timeout"`
	} `json:"gateway"`
	Webhook struct {
		Secret    string   `json:"secret"`
		DedupeTTL Duration `json:"dedupe_ttl"`
	} `json:"webhook"`
	Sync struct {
		Endpoints       []string       `json:"endpoints"`
		GenericEndpoint string         `json:"generic_endpoint"`
		QueryVariants   []string       `json:"query_variants"`
		Interval        Duration       `json:"interval"`
		Fields          extract.Fields `json:"fields"`
	} `json:"sync"`
	Pacing struct {
		MinDelay Duration `json:"min_delay"`
		MaxDelay Duration `json:"max_delay"`
	} `json:"pacing"`
	Live struct {
		CallbackTimeout Duration `json:"callback_timeout"`
		AllowedOrigins  []string `json:"allowed_origins"`
	} `json:"live"`
	Security struct {
		EncryptionKey string `json:"encryption_key" validate:"omitempty,len=32"`
	} `json:"security"`
	Seed struct {
		Enable        bool   `json:"enable"`
		AdminUsername string `json:"admin_username"`
		AdminPassword string `json:"admin_password"`
	} `json:"seed"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = 8080
	config.Server.Host = ""
	config.Server.MaxBodyBytes = 10 << 20
	config.Database.DSN = "file:sms.db?cache=shared&mode=rwc&_foreign_keys=on"
	config.JWT.Secret = "your-secret-key" // This should be changed in production
	config.JWT.TokenExpiry = Duration(24 * time.Hour)
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.Gateway.Scheme = "http"
	config.Gateway.Port = 8080
	config.Gateway.ProbeTimeout = Duration(15 * time.Second)
	config.Gateway.SendTimeout = Duration(15 * time.Second)
	config.Gateway.HealthTimeout = Duration(5 * time.Second)
	config.Webhook.DedupeTTL = Duration(30 * time.Second)
	config.Sync.Endpoints = []string{"/messages/inbox", "/messages/received", "/messages/incoming", "/messages"}
	config.Sync.GenericEndpoint = "/messages"
	config.Sync.QueryVariants = []string{"?inbound=true", "?inbound=1", "?direction=in", "?type=1", "?folder=inbox", "?sent=false"}
	config.Sync.Fields = extract.DefaultFields()
	config.Pacing.MinDelay = Duration(10 * time.Second)
	config.Pacing.MaxDelay = Duration(20 * time.Second)
	config.Live.CallbackTimeout = Duration(30 * time.Second)
	config.Seed.AdminUsername = "admin"
	return config
}

// GatewayURL returns the device base URL, empty when no host is set
func (c *Config) GatewayURL() string {
	if c.Gateway.Host == "" {
		return ""
	}
	scheme := c.Gateway.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if c.Gateway.Port == 0 {
		return fmt.Sprintf("%s://%s", scheme, c.Gateway.Host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Gateway.Host, c.Gateway.Port)
}

// LoadDotEnv loads variables from an .env file into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PIXEL_IP"); v != "" {
		c.Gateway.Host = v
	}
	if v := os.Getenv("PIXEL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PIXEL_PORT: %w", err)
		}
		c.Gateway.Port = port
	}
	if v := os.Getenv("PIXEL_USER"); v != "" {
		c.Gateway.Username = v
	}
	if v := os.Getenv("PIXEL_PASS"); v != "" {
		c.Gateway.Password = v
	}
	if v := os.Getenv("PIXEL_WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("TOTP_ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Live.AllowedOrigins = origins
	}
	return nil
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Pacing.MaxDelay < c.Pacing.MinDelay {
		return errors.New("invalid configuration: pacing max_delay must not be below min_delay")
	}
	if c.Pacing.MinDelay < 0 {
		return errors.New("invalid configuration: pacing min_delay must not be negative")
	}
	if c.Sync.GenericEndpoint == "" && len(c.Sync.QueryVariants) > 0 {
		return errors.New("invalid configuration: sync query_variants need a generic_endpoint")
	}
	return nil
}

// Load reads the optional .env file, the optional JSON config file, applies
// environment overrides and validates the result
func Load(configPath, envPath string) (*Config, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := DefaultConfig()
	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("config path error: %w", err)
		}
		cfg, err = LoadConfig(absPath)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
