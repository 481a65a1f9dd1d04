package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DefaultAdminUser     = "admin"
	DefaultAdminPassword = "123"
)

type Config struct {
	Data  Data  `yaml:"data"`
	Log   Log   `yaml:"log"`
	Admin Admin `yaml:"admin"`
	UI    UI    `yaml:"ui"`
}

type Data struct {
	Dir      string `yaml:"dir" env:"FLIGHTDESK_DATA_DIR" env-default:"data"`
	SeedFile string `yaml:"seed_file" env:"FLIGHTDESK_SEED_FILE"`
}

type Log struct {
	Level string `yaml:"level" env:"FLIGHTDESK_LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"FLIGHTDESK_LOG_FILE"`
}

// Admin holds the account created when no account file exists yet. The
// defaults are public and must be changed after first start.
type Admin struct {
	Username string `yaml:"username" env:"FLIGHTDESK_ADMIN_USER" env-default:"admin"`
	Password string `yaml:"password" env:"FLIGHTDESK_ADMIN_PASSWORD" env-default:"123"`
}

type UI struct {
	PageSize int `yaml:"page_size" env:"FLIGHTDESK_PAGE_SIZE" env-default:"11"`
}

// New reads configuration from the YAML file at path, then applies
// environment overrides. A missing file falls back to environment and
// defaults only. An empty path skips the file.
func New(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		err := cleanenv.ReadConfig(path, cfg)
		if err == nil {
			return cfg, cfg.validate()
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("config error: data dir is empty")
	}
	if c.UI.PageSize <= 0 {
		return fmt.Errorf("config error: page size must be positive, got %d", c.UI.PageSize)
	}
	return nil
}

// CatalogPath is the binary flight catalog file.
func (c *Config) CatalogPath() string { return filepath.Join(c.Data.Dir, "flights.txt") }

// AccountsPath is the binary account file.
func (c *Config) AccountsPath() string { return filepath.Join(c.Data.Dir, "userinfo.txt") }

// OrdersDir holds one ledger file per user.
func (c *Config) OrdersDir() string { return filepath.Join(c.Data.Dir, "order") }

func (c *Config) ReportsDir() string { return filepath.Join(c.Data.Dir, "reports") }

func (c *Config) JournalDir() string { return filepath.Join(c.Data.Dir, "journal") }

func (c *Config) MetricsPath() string { return filepath.Join(c.Data.Dir, "metrics.prom") }

func (c *Config) LockPath() string { return filepath.Join(c.Data.Dir, ".lock") }

// SeedPath is the CSV used to build the catalog on first start.
func (c *Config) SeedPath() string {
	if c.Data.SeedFile != "" {
		return c.Data.SeedFile
	}
	return filepath.Join(c.Data.Dir, "init_flights.csv")
}

// LogPath is where logs go; defaults to a file in the data directory so
// log lines do not interleave with the menus.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.Data.Dir, "flightdesk.log")
}

// UsesDefaultAdminPassword reports whether the bootstrap admin still has
// the published default password.
func (c *Config) UsesDefaultAdminPassword() bool {
	return c.Admin.Username == DefaultAdminUser && c.Admin.Password == DefaultAdminPassword
}
