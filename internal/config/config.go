package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var NoCompaniesErr = errors.New("at least one company must be configured")

// Money decodes YAML number scalars into a decimal. yaml.v3 has no text
// unmarshaler support, so the wrapper is needed to keep float parsing out
// of the money path.
type Money struct {
	decimal.Decimal
}

func (m *Money) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", value.Value, err)
	}
	m.Decimal = d
	return nil
}

type Company struct {
	Name      string `yaml:"name"`
	Symbol    string `yaml:"symbol"`
	Price     Money  `yaml:"price"`
	Variation int64  `yaml:"variation"`
	PeriodMs  int    `yaml:"period_ms"`
	Volume    int64  `yaml:"volume"`
}

func (c Company) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

type Config struct {
	InitialCash Money     `yaml:"initial_cash"`
	Companies   []Company `yaml:"companies"`
	Traders     struct {
		Count  int   `yaml:"count"`
		Shares int64 `yaml:"shares"` // 0 picks a random count between 1 and 6
	} `yaml:"traders"`
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	RPC struct {
		Port int `yaml:"port"`
	} `yaml:"rpc"`
	Audit struct {
		// DSN of the audit database; empty disables the journal.
		// Overridable through AUDIT_DSN.
		DSN string `yaml:"dsn"`
	} `yaml:"audit"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads the YAML configuration, applies environment overrides and
// defaults, and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if dsn := os.Getenv("AUDIT_DSN"); dsn != "" {
		cfg.Audit.DSN = dsn
	}

	cfg.applyDefaults()
	if len(cfg.Companies) == 0 {
		return nil, NoCompaniesErr
	}
	for i, company := range cfg.Companies {
		if company.Symbol == "" || !company.Price.IsPositive() {
			return nil, fmt.Errorf("company %d (%q): symbol and a positive price are required", i, company.Name)
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InitialCash.IsZero() {
		c.InitialCash = Money{decimal.NewFromInt(10000)}
	}
	if c.Traders.Count == 0 {
		c.Traders.Count = 2
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = 5555
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Companies {
		if c.Companies[i].Name == "" {
			c.Companies[i].Name = c.Companies[i].Symbol
		}
		if c.Companies[i].Variation == 0 {
			c.Companies[i].Variation = 100
		}
		if c.Companies[i].PeriodMs == 0 {
			c.Companies[i].PeriodMs = 3000
		}
		if c.Companies[i].Volume == 0 {
			c.Companies[i].Volume = 10000
		}
	}
}

// Symbols returns the configured company symbols.
func (c *Config) Symbols() []string {
	symbols := make([]string, 0, len(c.Companies))
	for _, company := range c.Companies {
		symbols = append(symbols, company.Symbol)
	}
	return symbols
}
