package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/image-drop-go/pkg/validation"

	"github.com/spf13/viper"
)

// Display modes
const (
	ModeSingle  = "single"
	ModeGallery = "gallery"
)

const DefaultMaxBatchSize = 10

// NormalizeMode folds case and surrounding space out of a display mode
func NormalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}

type Config struct {
	Host                 string
	Port                 string
	UploadURL            string
	Mode                 string
	MaxBatchSize         int
	RequestTimeout       time.Duration
	UploadInterval       time.Duration
	MaxConcurrentUploads int
	MaxRequestBodySize   int64
	PreviewWorkers       int
	LegacyAuthHeuristic  bool
	LogLevel             string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob container credentials are configured
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// LoadFromEnv reads the configuration from environment variables. When
// CONFIG_FILE is set, values from that file are used as a base and the
// environment still takes precedence.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read CONFIG_FILE %q: %w", file, err)
		}
	}

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("upload_url", "http://localhost:5000/upload")
	v.SetDefault("mode", ModeGallery)
	v.SetDefault("max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("request_timeout", "0s")
	v.SetDefault("upload_interval", "0s")
	v.SetDefault("max_concurrent_uploads", 0)
	v.SetDefault("max_request_body_size", 16*1024*1024) // 16MB, matches the analysis server
	v.SetDefault("preview_workers", 4)
	v.SetDefault("legacy_auth_heuristic", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("azure_account_name", "")
	v.SetDefault("azure_account_key", "")
	v.SetDefault("azure_container", "")
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:                 strings.TrimSpace(v.GetString("host")),
		Port:                 strings.TrimSpace(v.GetString("port")),
		UploadURL:            strings.TrimSpace(v.GetString("upload_url")),
		Mode:                 NormalizeMode(v.GetString("mode")),
		MaxBatchSize:         v.GetInt("max_batch_size"),
		RequestTimeout:       parseDurationOrDefault(v, "request_timeout", 0),
		UploadInterval:       parseDurationOrDefault(v, "upload_interval", 0),
		MaxConcurrentUploads: v.GetInt("max_concurrent_uploads"),
		MaxRequestBodySize:   v.GetInt64("max_request_body_size"),
		PreviewWorkers:       v.GetInt("preview_workers"),
		LegacyAuthHeuristic:  v.GetBool("legacy_auth_heuristic"),
		LogLevel:             v.GetString("log_level"),
		AzureAccountName:     strings.TrimSpace(v.GetString("azure_account_name")),
		AzureAccountKey:      strings.TrimSpace(v.GetString("azure_account_key")),
		AzureContainer:       strings.TrimSpace(v.GetString("azure_container")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and formats of every field
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if err := validation.NewURLValidator().ValidateUploadURL(c.UploadURL); err != nil {
		return fmt.Errorf("invalid UPLOAD_URL %q: %w", c.UploadURL, err)
	}
	if c.Mode != ModeSingle && c.Mode != ModeGallery {
		return fmt.Errorf("MODE must be %q or %q (got %q)", ModeSingle, ModeGallery, c.Mode)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be > 0 (got %d)", c.MaxBatchSize)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxConcurrentUploads < 0 || c.PreviewWorkers < 0 {
		return fmt.Errorf("MAX_CONCURRENT_UPLOADS and PREVIEW_WORKERS must be >= 0 (got %d, %d)",
			c.MaxConcurrentUploads, c.PreviewWorkers)
	}
	if c.RequestTimeout < 0 || c.UploadInterval < 0 {
		return fmt.Errorf("durations must be >= 0 (got timeout=%s, interval=%s)",
			c.RequestTimeout, c.UploadInterval)
	}
	if (c.AzureAccountName == "") != (c.AzureAccountKey == "") {
		return fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY must be set together")
	}
	return nil
}

func parseDurationOrDefault(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration >= 0 {
			return duration
		}
	}
	return defaultValue
}
