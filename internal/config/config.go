package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sales-dashboard/internal/segmentation"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Data         DataConfig         `yaml:"data"`
	Logger       LoggerConfig       `yaml:"logger"`
	Security     SecurityConfig     `yaml:"security"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DataConfig names the datasets preloaded at startup. Empty paths start the
// dashboards empty until an upload arrives.
type DataConfig struct {
	SalesFile         string `yaml:"sales_file"`
	AssuranceFile     string `yaml:"assurance_file"`
	AssuranceEncoding string `yaml:"assurance_encoding"`
	UploadMaxBytes    int64  `yaml:"upload_max_bytes"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	EnableCSRF      bool     `yaml:"csrf_enabled"`
	EnableRateLimit bool     `yaml:"rate_limit_enabled"`
	RateLimitRPS    int      `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
}

type SegmentationConfig struct {
	Seed          int64  `yaml:"seed"`
	Restarts      int    `yaml:"restarts"`
	MaxIter       int    `yaml:"max_iter"`
	MinK          int    `yaml:"min_k"`
	MaxK          int    `yaml:"max_k"`
	DefaultK      int    `yaml:"default_k"`
	ZeroVariance  string `yaml:"zero_variance"`
	MaxSearchRows int    `yaml:"max_search_rows"`
	Workers       int    `yaml:"workers"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			AssuranceEncoding: "latin1",
			UploadMaxBytes:    64 << 20,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableCSRF:      true,
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Segmentation: SegmentationConfig{
			Seed:         42,
			Restarts:     10,
			MaxIter:      300,
			MinK:         segmentation.MinClusters,
			MaxK:         segmentation.MaxClusters,
			DefaultK:     3,
			ZeroVariance: "zero",
			Workers:      4,
		},
	}
}

// Load builds the configuration from defaults, then an optional YAML file
// named by CONFIG_FILE, then environment variables. A .env file in the
// working directory (or ENV_FILE) is read first and never overrides
// variables already set.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server = ServerConfig{
		Host:            getEnvString("SERVER_HOST", c.Server.Host),
		Port:            getEnvInt("SERVER_PORT", c.Server.Port),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout),
		IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout),
	}
	c.Data = DataConfig{
		SalesFile:         getEnvString("SALES_DATA_FILE", c.Data.SalesFile),
		AssuranceFile:     getEnvString("ASSURANCE_DATA_FILE", c.Data.AssuranceFile),
		AssuranceEncoding: getEnvString("ASSURANCE_ENCODING", c.Data.AssuranceEncoding),
		UploadMaxBytes:    getEnvInt64("UPLOAD_MAX_BYTES", c.Data.UploadMaxBytes),
	}
	c.Logger = LoggerConfig{
		Level:  getEnvString("LOG_LEVEL", c.Logger.Level),
		Format: getEnvString("LOG_FORMAT", c.Logger.Format),
	}
	c.Security = SecurityConfig{
		EnableCSRF:      getEnvBool("SECURITY_CSRF_ENABLED", c.Security.EnableCSRF),
		EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", c.Security.EnableRateLimit),
		RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", c.Security.RateLimitRPS),
		RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", c.Security.RateLimitBurst),
		AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins),
		TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", c.Security.TrustedProxies),
	}
	c.Segmentation = SegmentationConfig{
		Seed:          getEnvInt64("SEGMENT_SEED", c.Segmentation.Seed),
		Restarts:      getEnvInt("SEGMENT_RESTARTS", c.Segmentation.Restarts),
		MaxIter:       getEnvInt("SEGMENT_MAX_ITER", c.Segmentation.MaxIter),
		MinK:          getEnvInt("SEGMENT_MIN_K", c.Segmentation.MinK),
		MaxK:          getEnvInt("SEGMENT_MAX_K", c.Segmentation.MaxK),
		DefaultK:      getEnvInt("SEGMENT_DEFAULT_K", c.Segmentation.DefaultK),
		ZeroVariance:  getEnvString("SEGMENT_ZERO_VARIANCE", c.Segmentation.ZeroVariance),
		MaxSearchRows: getEnvInt("SEGMENT_MAX_SEARCH_ROWS", c.Segmentation.MaxSearchRows),
		Workers:       getEnvInt("SEGMENT_WORKERS", c.Segmentation.Workers),
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive")
	}

	validEncodings := []string{"latin1", "latin-1", "iso-8859-1", "cp1252", "windows-1252", "utf-8", "utf8"}
	if !contains(validEncodings, strings.ToLower(c.Data.AssuranceEncoding)) {
		return fmt.Errorf("invalid assurance encoding %q, must be one of: %s", c.Data.AssuranceEncoding, strings.Join(validEncodings, ", "))
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return c.Segmentation.validate()
}

func (s SegmentationConfig) validate() error {
	if err := segmentation.Automatic(s.MinK, s.MaxK).Validate(); err != nil {
		return fmt.Errorf("segmentation search range: %w", err)
	}
	if err := segmentation.Manual(s.DefaultK).Validate(); err != nil {
		return fmt.Errorf("segmentation default k: %w", err)
	}
	if s.Restarts <= 0 {
		return fmt.Errorf("segmentation restarts must be positive")
	}
	if s.MaxIter <= 0 {
		return fmt.Errorf("segmentation max iterations must be positive")
	}
	if s.Workers <= 0 {
		return fmt.Errorf("segmentation workers must be positive")
	}
	if s.MaxSearchRows < 0 {
		return fmt.Errorf("segmentation max search rows cannot be negative")
	}
	if _, err := segmentation.ParseZeroVariancePolicy(s.ZeroVariance); err != nil {
		return err
	}
	return nil
}

// Options converts the section into engine options. It assumes validate
// has already accepted the section.
func (s SegmentationConfig) Options() segmentation.Options {
	policy, _ := segmentation.ParseZeroVariancePolicy(s.ZeroVariance)

	opts := segmentation.DefaultOptions()
	opts.Seed = s.Seed
	opts.Restarts = s.Restarts
	opts.MaxIter = s.MaxIter
	opts.ZeroVariance = policy
	opts.MaxSearchRows = s.MaxSearchRows
	opts.Workers = s.Workers
	return opts
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
