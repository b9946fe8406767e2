// Package common provides shared configuration, logging and run statistics
// for the KI7MT Kp forecast tools.
package common

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KI7MT_CLICKHOUSE_HOST.
const EnvPrefix = "KI7MT"

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string `mapstructure:"clickhouse_host"`
	ClickHousePort     int    `mapstructure:"clickhouse_port"`
	ClickHouseDatabase string `mapstructure:"clickhouse_database"`
	ClickHouseUser     string `mapstructure:"clickhouse_user"`
	ClickHousePassword string `mapstructure:"clickhouse_password"`
	DataDir            string `mapstructure:"data_dir"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`

	ModelDir   string `mapstructure:"model_dir"`
	ModelFile  string `mapstructure:"model_file"`
	ScalerFile string `mapstructure:"scaler_file"`

	Horizon int    `mapstructure:"horizon"`
	Window  int    `mapstructure:"window"`
	Mode    string `mapstructure:"mode"`
	Noise   bool   `mapstructure:"noise"`
	Seed    int64  `mapstructure:"seed"`

	OutlookTable  string `mapstructure:"outlook_table"`
	ForecastTable string `mapstructure:"forecast_table"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     "localhost",
		ClickHousePort:     9000,
		ClickHouseDatabase: "solar",
		ClickHouseUser:     "default",
		ClickHousePassword: "",
		DataDir:            "/var/lib/ki7mt-ai-lab",
		LogLevel:           "info",
		LogFormat:          "console",
		ModelDir:           "/var/lib/ki7mt-ai-lab/models",
		ModelFile:          "model.json.gz",
		ScalerFile:         "scaler.json.gz",
		Horizon:            27,
		Window:             27,
		Mode:               "mean7",
		Noise:              false,
		Seed:               -1,
		OutlookTable:       "solar.outlook_27day",
		ForecastTable:      "solar.kp_forecast",
	}
}

// legacyEnv keeps the lab-wide variable names working alongside the
// prefixed ones.
var legacyEnv = map[string]string{
	"clickhouse_host":     "CLICKHOUSE_HOST",
	"clickhouse_database": "CLICKHOUSE_DATABASE",
	"clickhouse_user":     "CLICKHOUSE_USER",
	"clickhouse_password": "CLICKHOUSE_PASSWORD",
	"data_dir":            "KI7MT_DATA_DIR",
	"log_level":           "LOG_LEVEL",
}

// LoadConfig reads an optional YAML file at path, then applies environment
// overrides, then validates. An empty path means defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("clickhouse_host", d.ClickHouseHost)
	v.SetDefault("clickhouse_port", d.ClickHousePort)
	v.SetDefault("clickhouse_database", d.ClickHouseDatabase)
	v.SetDefault("clickhouse_user", d.ClickHouseUser)
	v.SetDefault("clickhouse_password", d.ClickHousePassword)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("model_dir", d.ModelDir)
	v.SetDefault("model_file", d.ModelFile)
	v.SetDefault("scaler_file", d.ScalerFile)
	v.SetDefault("horizon", d.Horizon)
	v.SetDefault("window", d.Window)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("noise", d.Noise)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("outlook_table", d.OutlookTable)
	v.SetDefault("forecast_table", d.ForecastTable)
}

// Validate checks the configuration for obviously unusable values.
func (c *Config) Validate() error {
	if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
		return fmt.Errorf("clickhouse_port out of range: %d", c.ClickHousePort)
	}
	if c.Horizon <= 0 {
		return errors.New("horizon must be positive")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// SolarDataDir returns the solar data directory path.
func (c *Config) SolarDataDir() string {
	return filepath.Join(c.DataDir, "solar")
}

// ModelPath returns the model artifact path.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelDir, c.ModelFile)
}

// ScalerPath returns the scaler artifact path.
func (c *Config) ScalerPath() string {
	return filepath.Join(c.ModelDir, c.ScalerFile)
}

// SeedPtr returns the seed, or nil when it is negative (unset).
func (c *Config) SeedPtr() *int64 {
	if c.Seed < 0 {
		return nil
	}
	s := c.Seed
	return &s
}
