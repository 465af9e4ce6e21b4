package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/journal"
)

// maxAmountScale bounds posting.amount_scale.
const maxAmountScale = 8

// FileName is the config file name inside a books directory.
const FileName = "freightbooks.yaml"

// Config represents the top-level freightbooks.yaml configuration.
type Config struct {
	Company CompanyConfig `yaml:"company"`
	Storage StorageConfig `yaml:"storage"`
	Fiscal  FiscalConfig  `yaml:"fiscal"`
	Posting PostingConfig `yaml:"posting"`
	Logging LoggingConfig `yaml:"logging"`
}

// CompanyConfig identifies the freight business.
type CompanyConfig struct {
	Name string `yaml:"name"`
}

// StorageConfig locates the ledger database.
type StorageConfig struct {
	Path       string `yaml:"path"` // relative to the config file
	InMemory   bool   `yaml:"in_memory,omitempty"`
	SyncWrites bool   `yaml:"sync_writes"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// FiscalConfig controls fiscal year handling.
type FiscalConfig struct {
	// AutoCreate lets posting create the current calendar year on demand.
	AutoCreate bool `yaml:"auto_create"`
}

// PostingConfig names the accounts used by the posting rules.
type PostingConfig struct {
	Receivables  string   `yaml:"receivables"`
	Sales        string   `yaml:"sales"`
	VATCollected string   `yaml:"vat_collected"`
	Bank         string   `yaml:"bank"`
	Cash         string   `yaml:"cash"`
	CashMethods  []string `yaml:"cash_methods"`
	PostingLog   bool     `yaml:"posting_log"` // record attempts in logs/posting-log.csv
	// AmountScale is the number of decimal places an amount may carry.
	// Unset means two.
	AmountScale *int32 `yaml:"amount_scale,omitempty"`
}

// Scale returns the configured amount scale or the ledger default.
func (p PostingConfig) Scale() int32 {
	if p.AmountScale == nil {
		return journal.DefaultAmountScale
	}
	return *p.AmountScale
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Load reads a freightbooks.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new books directory.
func Default(companyName string) *Config {
	return &Config{
		Company: CompanyConfig{
			Name: companyName,
		},
		Storage: StorageConfig{
			Path:       "data",
			SyncWrites: true,
		},
		Posting: PostingConfig{
			Receivables:  accounts.NumberReceivables,
			Sales:        accounts.NumberSales,
			VATCollected: accounts.NumberVATCollected,
			Bank:         accounts.NumberBank,
			Cash:         accounts.NumberCash,
			CashMethods:  []string{"CASH", "ESPECES"},
			PostingLog:   true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var errs []error
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Storage.MaxRetries < 0 {
		errs = append(errs, errors.New("storage.max_retries must not be negative"))
	}
	if s := c.Posting.Scale(); s < 0 || s > maxAmountScale {
		errs = append(errs, fmt.Errorf("posting.amount_scale must be between 0 and %d", maxAmountScale))
	}
	for name, number := range map[string]string{
		"posting.receivables":   c.Posting.Receivables,
		"posting.sales":         c.Posting.Sales,
		"posting.vat_collected": c.Posting.VATCollected,
		"posting.bank":          c.Posting.Bank,
		"posting.cash":          c.Posting.Cash,
	} {
		if number == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	return errors.Join(errs...)
}

// StorageDir resolves the storage path against the directory holding the
// config file.
func (c *Config) StorageDir(configPath string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(filepath.Dir(configPath), c.Storage.Path)
}
