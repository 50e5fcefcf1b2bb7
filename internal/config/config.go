// Package config provides configuration management for labtrack.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (SERVER_PORT, STORAGE_DATA_DIR, UPLOADS_MAX_FILE_SIZE, ...)
// 3. Default values
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Uploads     UploadsConfig     `mapstructure:"uploads"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Log         LogConfig         `mapstructure:"log"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins lists CORS origins; "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// OpenAPIValidation enables request validation against api/openapi.yaml.
	OpenAPIValidation bool `mapstructure:"openapi_validation"`
}

// StorageConfig locates the JSON documents and the attachment directory.
type StorageConfig struct {
	DataDir         string `mapstructure:"data_dir"`
	EquipmentFile   string `mapstructure:"equipment_file"`
	MaintenanceFile string `mapstructure:"maintenance_file"`
	SequenceFile    string `mapstructure:"sequence_file"`
	UploadsDir      string `mapstructure:"uploads_dir"`
}

// EquipmentPath returns the equipment document path.
func (c StorageConfig) EquipmentPath() string { return c.resolve(c.EquipmentFile) }

// MaintenancePath returns the maintenance document path.
func (c StorageConfig) MaintenancePath() string { return c.resolve(c.MaintenanceFile) }

// SequencePath returns the counters document path.
func (c StorageConfig) SequencePath() string { return c.resolve(c.SequenceFile) }

func (c StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// UploadsConfig contains attachment upload limits.
type UploadsConfig struct {
	MaxFileSize      int64    `mapstructure:"max_file_size"`
	MaxFiles         int      `mapstructure:"max_files"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
	FilenameSuffix   string   `mapstructure:"filename_suffix"`
}

// MaintenanceConfig contains derived-status settings.
type MaintenanceConfig struct {
	DueWindowDays int `mapstructure:"due_window_days"`
	// SweepInterval is the period of the background status refresh. Zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CategoryConfig maps an equipment category to its asset-number code.
type CategoryConfig struct {
	Name string `mapstructure:"name"`
	Code string `mapstructure:"code"`
}

// CatalogConfig extends the built-in categories and locations.
type CatalogConfig struct {
	Categories []CategoryConfig `mapstructure:"categories"`
	Locations  []string         `mapstructure:"locations"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	FilePoolSize    int `mapstructure:"file_pool_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultAllowedMimeTypes is the attachment allow-list.
var DefaultAllowedMimeTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
}

var categoryCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Nested keys map to upper-case env names: uploads.max_file_size → UPLOADS_MAX_FILE_SIZE.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/labtrack")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Storage.UploadsDir) == "" {
		return errors.New("storage.uploads_dir must not be empty")
	}
	for key, name := range map[string]string{
		"storage.equipment_file":   c.Storage.EquipmentFile,
		"storage.maintenance_file": c.Storage.MaintenanceFile,
		"storage.sequence_file":    c.Storage.SequenceFile,
	} {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}
	if c.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("uploads.max_file_size must be positive, got %d", c.Uploads.MaxFileSize)
	}
	if c.Uploads.MaxFiles <= 0 {
		return fmt.Errorf("uploads.max_files must be positive, got %d", c.Uploads.MaxFiles)
	}
	if c.Maintenance.DueWindowDays < 0 {
		return fmt.Errorf("maintenance.due_window_days must not be negative, got %d", c.Maintenance.DueWindowDays)
	}
	if c.Maintenance.SweepInterval < 0 {
		return fmt.Errorf("maintenance.sweep_interval must not be negative, got %s", c.Maintenance.SweepInterval)
	}
	for _, cat := range c.Catalog.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return errors.New("catalog.categories: name must not be empty")
		}
		if !categoryCodePattern.MatchString(cat.Code) {
			return fmt.Errorf("catalog.categories: code %q for %q must be three upper-case letters", cat.Code, cat.Name)
		}
	}
	if c.Worker.GeneralPoolSize <= 0 || c.Worker.FilePoolSize <= 0 {
		return errors.New("worker pool sizes must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

// normalize fills list settings that an empty env override would otherwise clear.
func (c *Config) normalize() {
	if len(c.Uploads.AllowedMimeTypes) == 0 {
		c.Uploads.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)
		logBootstrapWarn("uploads.allowed_mime_types is empty; using the built-in allow-list",
			zap.Int("count", len(c.Uploads.AllowedMimeTypes)),
		)
	}
	if strings.TrimSpace(c.Uploads.FilenameSuffix) == "" {
		c.Uploads.FilenameSuffix = "maintenance"
	}
	for i := range c.Catalog.Categories {
		c.Catalog.Categories[i].Name = strings.TrimSpace(c.Catalog.Categories[i].Name)
		c.Catalog.Categories[i].Code = strings.ToUpper(strings.TrimSpace(c.Catalog.Categories[i].Code))
	}
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.openapi_validation", true)

	// Storage
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.equipment_file", "equipment.json")
	v.SetDefault("storage.maintenance_file", "maintenance.json")
	v.SetDefault("storage.sequence_file", "sequences.json")
	v.SetDefault("storage.uploads_dir", "uploads")

	// Uploads
	v.SetDefault("uploads.max_file_size", 10<<20)
	v.SetDefault("uploads.max_files", 10)
	v.SetDefault("uploads.allowed_mime_types", DefaultAllowedMimeTypes)
	v.SetDefault("uploads.filename_suffix", "maintenance")

	// Maintenance
	v.SetDefault("maintenance.due_window_days", 30)
	v.SetDefault("maintenance.sweep_interval", "1h")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 4)
	v.SetDefault("worker.file_pool_size", 8)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
