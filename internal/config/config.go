package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the redirector
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"10485760" validate:"min=1"` // 10MB, imports can be large
	}

	Storage struct {
		DataDir      string `env:"DATA_DIR" envDefault:"./data"`
		RulesFile    string `env:"RULES_FILE" envDefault:"rules.json"`
		TrackingFile string `env:"TRACKING_FILE" envDefault:"tracking.json"`
		SettingsFile string `env:"SETTINGS_FILE" envDefault:"settings.json"`
		// Files above this size are decoded element by element
		LargeFileThreshold int64 `env:"LARGE_FILE_THRESHOLD" envDefault:"10485760" validate:"min=1"`
	}

	Cache struct {
		ReprocessBatchSize int `env:"REPROCESS_BATCH_SIZE" envDefault:"1000" validate:"min=1"`
		DecisionCacheSize  int `env:"DECISION_CACHE_SIZE" envDefault:"10000" validate:"min=100"`
	}

	Security struct {
		CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
		RateLimitRPS   int      `env:"RATE_LIMIT_RPS" envDefault:"100" validate:"min=1"`
		RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"200" validate:"min=1"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	}
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validator := validator.New()

	if err := validator.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	files := map[string]string{
		"rules":    cfg.Storage.RulesFile,
		"tracking": cfg.Storage.TrackingFile,
		"settings": cfg.Storage.SettingsFile,
	}
	seen := make(map[string]string, len(files))
	for name, file := range files {
		if strings.TrimSpace(file) == "" {
			return fmt.Errorf("%s file cannot be empty", name)
		}
		path := filepath.Clean(file)
		if other, ok := seen[path]; ok {
			return fmt.Errorf("%s and %s files must differ", other, name)
		}
		seen[path] = name
	}

	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Security.RateLimitBurst < cfg.Security.RateLimitRPS {
		return fmt.Errorf("rate limit burst must be at least the rate limit")
	}

	return nil
}

// EnsureDirectories creates all required directories
func (cfg *Config) EnsureDirectories() error {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", cfg.Storage.DataDir, err)
	}
	return nil
}

// RulesPath returns the rule store location
func (cfg *Config) RulesPath() string {
	return cfg.resolve(cfg.Storage.RulesFile)
}

// TrackingPath returns the tracking log location
func (cfg *Config) TrackingPath() string {
	return cfg.resolve(cfg.Storage.TrackingFile)
}

// SettingsPath returns the settings file location
func (cfg *Config) SettingsPath() string {
	return cfg.resolve(cfg.Storage.SettingsFile)
}

// resolve places relative file names inside the data directory
func (cfg *Config) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(cfg.Storage.DataDir, file)
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
