// Package config provides configuration for the attendance exporter.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/veragate-systems/attendance-etl/internal/models"
)

// Config is the full configuration surface of one exporter run.
type Config struct {
	Source     SourceConfig  `mapstructure:"source"`
	Sink       SinkConfig    `mapstructure:"sink"`
	EmployeeDB DBConfig      `mapstructure:"employee_db"`
	NATS       NATSConfig    `mapstructure:"nats"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Export     ExportConfig  `mapstructure:"export"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

// SourceConfig points at the access-control gateway.
type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SinkConfig points at the destination database.
type SinkConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DBConfig points at the auxiliary HR database.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Query string `mapstructure:"query"`
}

// NATSConfig configures the advisory alert transport. An empty URL disables
// publishing.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// MetricsConfig configures the optional /metrics listener served while a run
// is in flight. Empty addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ExportConfig holds the extraction window, filters, and batch sizing.
type ExportConfig struct {
	Start            string `mapstructure:"start"` // RFC3339, empty = open / checkpoint
	End              string `mapstructure:"end"`   // RFC3339, empty = open
	EventTypes       string `mapstructure:"event_types"`
	EmployeeFilter   bool   `mapstructure:"employee_filter"`
	EmployeeField    string `mapstructure:"employee_field"`
	AccessRuleFilter bool   `mapstructure:"access_rule_filter"`
	AccessRuleName   string `mapstructure:"access_rule_name"`
	PageSize         int    `mapstructure:"page_size"`
	HydrateBatchSize int    `mapstructure:"hydrate_batch_size"`
	InsertBatchSize  int    `mapstructure:"insert_batch_size"`
	StateFile        string `mapstructure:"state_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// setDefaults registers every key so environment overrides are always
// visible to Unmarshal, not only keys present in the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("sink.dsn", "")
	v.SetDefault("employee_db.dsn", "")
	v.SetDefault("employee_db.query", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("export.start", "")
	v.SetDefault("export.end", "")
	v.SetDefault("export.event_types", "")
	v.SetDefault("export.employee_filter", false)
	v.SetDefault("export.employee_field", "Employee Number")
	v.SetDefault("export.access_rule_filter", false)
	v.SetDefault("export.access_rule_name", "")
	v.SetDefault("export.page_size", 1000)
	v.SetDefault("export.hydrate_batch_size", 2000)
	v.SetDefault("export.insert_batch_size", 10000)
	v.SetDefault("export.state_file", "attendance-etl.state.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from the given YAML file (optional) and
// ATTENDANCE_ETL_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ATTENDANCE_ETL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Export.PageSize <= 0 {
		return fmt.Errorf("export.page_size must be positive")
	}
	if c.Export.HydrateBatchSize <= 0 {
		return fmt.Errorf("export.hydrate_batch_size must be positive")
	}
	if c.Export.InsertBatchSize <= 0 {
		return fmt.Errorf("export.insert_batch_size must be positive")
	}
	if c.Export.AccessRuleFilter && strings.TrimSpace(c.Export.AccessRuleName) == "" {
		return fmt.Errorf("export.access_rule_name is required when the access-rule filter is enabled")
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	if _, err := models.ParseEventTypes(c.Export.EventTypes); err != nil {
		return fmt.Errorf("export.event_types: %w", err)
	}
	return nil
}

// Window parses the optional start and end bounds. Nil means open-ended.
func (c *Config) Window() (start, end *time.Time, err error) {
	if s := strings.TrimSpace(c.Export.Start); s != "" {
		t, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return nil, nil, fmt.Errorf("export.start: %w", perr)
		}
		t = t.UTC()
		start = &t
	}
	if e := strings.TrimSpace(c.Export.End); e != "" {
		t, perr := time.Parse(time.RFC3339, e)
		if perr != nil {
			return nil, nil, fmt.Errorf("export.end: %w", perr)
		}
		t = t.UTC()
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("export.end precedes export.start")
	}
	return start, end, nil
}

// EventTypes parses the configured comma-separated type filter.
func (c *Config) EventTypes() ([]models.EventType, error) {
	return models.ParseEventTypes(c.Export.EventTypes)
}
