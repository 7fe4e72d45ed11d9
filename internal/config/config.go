// Package config loads the application settings from YAML.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"image-super-resolution/internal/logging"
	"image-super-resolution/internal/persist"
	"image-super-resolution/internal/preview"
)

type Model struct {
	Path      string `yaml:"path"`
	Backend   string `yaml:"backend"`
	Target    string `yaml:"target"`
	ProbeSize int    `yaml:"probe_size"`
}

type Database struct {
	Dialect  string `yaml:"dialect"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// DSN overrides the fields above. For sqlite it is the database file.
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

type Persistence struct {
	RollbackFileOnDBError bool   `yaml:"rollback_file_on_db_error"`
	DefaultExtension      string `yaml:"default_extension"`
}

type Preview struct {
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
	Resampler string `yaml:"resampler"`
}

type UI struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// Config is the full application configuration.
type Config struct {
	Model       Model          `yaml:"model"`
	Database    Database       `yaml:"database"`
	Persistence Persistence    `yaml:"persistence"`
	Preview     Preview        `yaml:"preview"`
	Logging     logging.Config `yaml:"logging"`
	UI          UI             `yaml:"ui"`
}

func Default() *Config {
	return &Config{
		Model: Model{
			Path:      "models/RRDB_ESRGAN_x4.onnx",
			Backend:   "opencv",
			Target:    "cpu",
			ProbeSize: 8,
		},
		Database: Database{
			Dialect: string(persist.DialectMySQL),
			Host:    "localhost",
			Port:    3306,
			User:    "root",
			Name:    "super_resolution",
			Timeout: 10 * time.Second,
		},
		Persistence: Persistence{
			DefaultExtension: ".png",
		},
		Preview: Preview{
			MaxWidth:  preview.DefaultMaxWidth,
			MaxHeight: preview.DefaultMaxHeight,
			Resampler: string(preview.Lanczos),
		},
		Logging: logging.DefaultConfig(),
		UI: UI{
			Width:  1000,
			Height: 700,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is empty")
	}
	if c.Model.ProbeSize < 1 {
		return fmt.Errorf("model.probe_size must be positive, got %d", c.Model.ProbeSize)
	}

	switch persist.Dialect(c.Database.Dialect) {
	case persist.DialectMySQL:
		if c.Database.DSN == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
			return fmt.Errorf("database.port out of range: %d", c.Database.Port)
		}
	case persist.DialectSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("database.dialect: %w: %q", persist.ErrUnsupportedDialect, c.Database.Dialect)
	}

	if c.Preview.MaxWidth < 1 || c.Preview.MaxHeight < 1 {
		return fmt.Errorf("preview bounds must be positive, got %dx%d", c.Preview.MaxWidth, c.Preview.MaxHeight)
	}
	if _, err := preview.ParseResampler(c.Preview.Resampler); err != nil {
		return fmt.Errorf("preview.resampler: %w", err)
	}
	if c.UI.Width <= 0 || c.UI.Height <= 0 {
		return fmt.Errorf("ui size must be positive")
	}
	return nil
}

// DataSourceName returns the driver DSN for the configured database.
func (d Database) DataSourceName() string {
	if d.DSN != "" {
		return d.DSN
	}
	if persist.Dialect(d.Dialect) == persist.DialectSQLite {
		return ""
	}

	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	mc.DBName = d.Name
	mc.ParseTime = true
	mc.Timeout = d.Timeout
	return mc.FormatDSN()
}

// StoreConfig converts the database section for persist.NewStore.
func (d Database) StoreConfig() persist.Config {
	return persist.Config{
		Dialect: persist.Dialect(d.Dialect),
		DSN:     d.DataSourceName(),
		Timeout: d.Timeout,
	}
}
