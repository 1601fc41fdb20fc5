package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/soudis/soliloan/pkg/models"
	"github.com/soudis/soliloan/pkg/validation"
	"github.com/spf13/viper"
)

const (
	DefaultConfigName = "soliloan"
	EnvPrefix         = "SOLILOAN"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
	Interest InterestConfig `mapstructure:"interest" json:"interest"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr" validate:"required"`

	// RefreshInterval is how often the portfolio gauges are recomputed.
	// Zero disables the refresh loop.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" json:"refresh_interval" validate:"gte=0"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path" validate:"required"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" json:"format" validate:"oneof=json console"`
	OutputFile string `mapstructure:"output_file" json:"output_file"`
}

type InterestConfig struct {
	// DefaultMethod applies to loans without their own method. Empty means
	// every loan must carry one.
	DefaultMethod string `mapstructure:"default_method" json:"default_method" validate:"omitempty,interest_method"`
}

// Load reads configuration from path (or soliloan.yaml in the working
// directory when path is empty), overlaid with SOLILOAN_* environment
// variables. A .env file, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validation.GetValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(validation.FormatErrors(err), "; "))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.refresh_interval", "1h")
	v.SetDefault("database.path", "soliloan.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_file", "")
	v.SetDefault("interest.default_method", "")
}

// DefaultInterestMethod parses the configured project default, or returns
// nil when none is set.
func (c *Config) DefaultInterestMethod() (*models.InterestMethod, error) {
	if c.Interest.DefaultMethod == "" {
		return nil, nil
	}
	m, err := models.ParseInterestMethod(c.Interest.DefaultMethod)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
