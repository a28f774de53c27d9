package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	SourceDirectory     string           `mapstructure:"source_directory" validate:"required"`
	SupportedExtensions []string         `mapstructure:"supported_extensions"`
	Conversion          ConversionConfig `mapstructure:"conversion"`
	Security            SecurityConfig   `mapstructure:"security"`
	Logging             LoggingConfig    `mapstructure:"logging"`
}

// ConversionConfig contains WebP encoding and resize settings
type ConversionConfig struct {
	Quality    int  `mapstructure:"quality"`
	Method     int  `mapstructure:"method"` // encoder effort 0-6
	MaxWidth   int  `mapstructure:"max_width"`
	AutoOrient bool `mapstructure:"auto_orient"`
}

// SecurityConfig contains safety settings
type SecurityConfig struct {
	DryRun bool `mapstructure:"dry_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SupportedExtensions: []string{".jpg", ".jpeg", ".png"},
		Conversion: ConversionConfig{
			Quality:    80,
			Method:     6,
			MaxWidth:   1920,
			AutoOrient: true,
		},
		Security: SecurityConfig{
			DryRun: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "webp-optimizer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.webp-optimizer")
		viper.AddConfigPath("/etc/webp-optimizer")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("WEBP_OPTIMIZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// The source directory is deliberately not checked for existence here;
	// a missing directory must surface as the fatal scan error so that
	// "directory does not exist" has a single error path.

	if c.Conversion.Quality < 1 || c.Conversion.Quality > 100 {
		return fmt.Errorf("invalid quality: %d (valid: 1-100)", c.Conversion.Quality)
	}

	if c.Conversion.Method < 0 || c.Conversion.Method > 6 {
		return fmt.Errorf("invalid method: %d (valid: 0-6)", c.Conversion.Method)
	}

	if c.Conversion.MaxWidth <= 0 {
		return fmt.Errorf("invalid max_width: %d (must be positive)", c.Conversion.MaxWidth)
	}

	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}
	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsSupportedExtension checks if the extension matches a recognized source format
func (c *Config) IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// Helper functions

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
