package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/banksync/internal/model"
)

// DefaultAPIURL is the production payments API base URL.
const DefaultAPIURL = "https://api.airwallex.com"

// Config represents the top-level banksync.yaml configuration.
type Config struct {
	API              APIConfig        `yaml:"api"`
	Database         DatabaseConfig   `yaml:"database"`
	Sync             SyncConfig       `yaml:"sync"`
	Accounts         []AccountConfig  `yaml:"accounts,omitempty"`
	TransactionTypes TypeFilterConfig `yaml:"transaction_types,omitempty"`
	Notify           NotifyConfig     `yaml:"notify,omitempty"`
	Log              LogConfig        `yaml:"log"`
	Metrics          MetricsConfig    `yaml:"metrics,omitempty"`
}

// APIConfig locates the remote payments API.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	EnableAPILog bool   `yaml:"enable_api_log"`
}

// DatabaseConfig points at the shared SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig controls scheduled syncs.
type SyncConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Schedule    string `yaml:"schedule"` // Hourly, Daily, Weekly, Monthly
	Concurrency int    `yaml:"concurrency"`
}

// AccountConfig maps one remote account to a ledger account.
type AccountConfig struct {
	AccountID    string              `yaml:"account_id"`
	SecretKey    string              `yaml:"secret_key,omitempty"`
	SecretKeyEnv string              `yaml:"secret_key_env,omitempty"`
	Ledger       LedgerAccountConfig `yaml:"ledger_account"`
}

// LedgerAccountConfig identifies the local bank account.
type LedgerAccountConfig struct {
	ID       string `yaml:"id"`
	Currency string `yaml:"currency"`
}

// TypeFilterConfig restricts which remote transaction types are ingested.
type TypeFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// NotifyConfig configures the progress notification sink. Empty NATSURL disables NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LogConfig controls process and diagnostic logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	SyncLogDir string `yaml:"sync_log_dir"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load reads a banksync.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:      DefaultAPIURL,
			EnableAPILog: true,
		},
		Database: DatabaseConfig{
			Path: "banksync.db",
		},
		Sync: SyncConfig{
			Enabled:     true,
			Schedule:    string(model.ScheduleHourly),
			Concurrency: 1,
		},
		Notify: NotifyConfig{
			Subject: "banksync.sync",
		},
		Log: LogConfig{
			Level:      "info",
			SyncLogDir: "logs",
		},
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := model.ParseScheduleKind(c.Sync.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("sync.schedule: %w", err))
	}
	if c.Sync.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency))
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.AccountID == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: account_id is required", i))
			continue
		}
		if seen[a.AccountID] {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate account_id %q", i, a.AccountID))
		}
		seen[a.AccountID] = true
		if a.SecretKey == "" && a.SecretKeyEnv == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: one of secret_key or secret_key_env is required", i))
		}
		if a.Ledger.ID == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: ledger_account.id is required", i))
		}
	}
	return errors.Join(errs...)
}

// ScheduleKind returns the parsed schedule. Call Validate first.
func (c *Config) ScheduleKind() model.ScheduleKind {
	k, _ := model.ParseScheduleKind(c.Sync.Schedule)
	return k
}

// RemoteAccounts resolves secrets and returns accounts in configuration order.
// lookupEnv is usually os.LookupEnv.
func (c *Config) RemoteAccounts(lookupEnv func(string) (string, bool)) ([]model.RemoteAccount, error) {
	accounts := make([]model.RemoteAccount, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		secret := a.SecretKey
		if a.SecretKeyEnv != "" {
			v, ok := lookupEnv(a.SecretKeyEnv)
			if !ok || v == "" {
				return nil, fmt.Errorf("account %s: environment variable %s is not set", a.AccountID, a.SecretKeyEnv)
			}
			secret = v
		}
		accounts = append(accounts, model.RemoteAccount{
			AccountID: a.AccountID,
			SecretKey: secret,
			Ledger: model.LedgerAccount{
				ID:       a.Ledger.ID,
				Currency: strings.ToUpper(a.Ledger.Currency),
			},
		})
	}
	return accounts, nil
}
