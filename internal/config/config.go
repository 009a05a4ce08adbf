package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigName = "mini-api"
	DefaultEnvFile    = ".env"
	EnvPrefix         = "MINI_API"
)

type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Auth      AuthConfig                `mapstructure:"auth"`
	Endpoints map[string]EndpointConfig `mapstructure:"endpoints"`
	Models    []ModelConfig             `mapstructure:"models"`
	Builder   BuilderConfig             `mapstructure:"builder"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Log       LogConfig                 `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-"`
}

type AppConfig struct {
	Debug bool `mapstructure:"debug"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	PoolSize     int           `mapstructure:"pool_size"`
	Path         string        `mapstructure:"path"` // directory for SQLite database files
	DSNOverride  string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.DSNOverride != "" {
		return d.DSNOverride
	}
	if d.IsSQLite() {
		return filepath.Join(d.Path, d.Name+".db")
	}
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// AuthConfig is the process-wide API key configuration.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Key     string `mapstructure:"key"`
	Header  string `mapstructure:"header"`
	Query   string `mapstructure:"query"`
}

// AuthOverrideConfig is a per-endpoint auth block. Nil fields fall back to
// the global AuthConfig.
type AuthOverrideConfig struct {
	Enabled *bool   `mapstructure:"enabled"`
	Key     *string `mapstructure:"key"`
	Header  *string `mapstructure:"header"`
	Query   *string `mapstructure:"query"`
}

// EndpointConfig is one entry under "endpoints". Relations stay untyped here:
// their shape depends on whether the endpoint reads a table or a model.
type EndpointConfig struct {
	Route     string              `mapstructure:"route" yaml:"route"`
	Table     string              `mapstructure:"table" yaml:"table,omitempty"`
	Model     string              `mapstructure:"model" yaml:"model,omitempty"`
	Columns   []string            `mapstructure:"columns" yaml:"columns"`
	Relations []any               `mapstructure:"relations" yaml:"relations,omitempty"`
	Auth      *AuthOverrideConfig `mapstructure:"auth" yaml:"-"`
}

type ModelConfig struct {
	Name       string           `mapstructure:"name"`
	Table      string           `mapstructure:"table"`
	PrimaryKey string           `mapstructure:"primary_key"`
	Relations  []RelationConfig `mapstructure:"relations"`
}

type RelationConfig struct {
	Name          string `mapstructure:"name"`
	Type          string `mapstructure:"type"` // belongs_to, has_one, has_many, many_to_many
	Target        string `mapstructure:"target"`
	ForeignKey    string `mapstructure:"foreign_key"`
	OwnerKey      string `mapstructure:"owner_key"`
	JoinTable     string `mapstructure:"join_table"`
	SourceJoinKey string `mapstructure:"source_join_key"`
	TargetJoinKey string `mapstructure:"target_join_key"`
}

type BuilderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	OnlyDev bool   `mapstructure:"only_dev"`
	Route   string `mapstructure:"route"`
}

// Mounted reports whether the builder API should be exposed.
func (b BuilderConfig) Mounted(debug bool) bool {
	if !b.Enabled {
		return false
	}
	return !b.OnlyDev || debug
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration. When file is empty the default search paths
// are used and a missing file is not an error.
func Load(file string) (*Config, error) {
	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Original variable names, without the nested path.
	_ = v.BindEnv("auth.enabled", "MINI_API_AUTH_ENABLED")
	_ = v.BindEnv("auth.key", "MINI_API_KEY")
	_ = v.BindEnv("builder.enabled", "MINI_API_BUILDER_ENABLED")
	_ = v.BindEnv("builder.only_dev", "MINI_API_BUILDER_ONLY_DEV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "app")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("database.query_timeout", 0)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.key", "")
	v.SetDefault("auth.header", "X-Api-Key")
	v.SetDefault("auth.query", "api_key")
	v.SetDefault("builder.enabled", false)
	v.SetDefault("builder.only_dev", true)
	v.SetDefault("builder.route", "mini-api-builder")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks settings that would make the server unusable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.QueryTimeout < 0 {
		return fmt.Errorf("negative query timeout %s", c.Database.QueryTimeout)
	}
	return nil
}

// LoadEnvFile copies variables from a dotenv file into the process
// environment. Variables that are already set are left alone.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}
