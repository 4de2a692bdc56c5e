package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cloudx-io/bidledger/core"
)

// Config is read from LEDGER_* environment variables.
type Config struct {
	// ListenAddr is used when VsockPort is zero.
	ListenAddr  string        `env:"LEDGER_LISTEN_ADDR" envDefault:"127.0.0.1:5000"`
	VsockPort   uint32        `env:"LEDGER_VSOCK_PORT"`
	MaxWorkers  int           `env:"LEDGER_MAX_WORKERS,required"`
	ReadTimeout time.Duration `env:"LEDGER_READ_TIMEOUT" envDefault:"30s"`
	// DBPath selects the SQLite store; empty keeps state in memory.
	DBPath      string `env:"LEDGER_DB_PATH"`
	MetricsAddr string `env:"LEDGER_METRICS_ADDR"`
	LogLevel    string `env:"LEDGER_LOG_LEVEL" envDefault:"info"`

	Contract   string `env:"LEDGER_CONTRACT" envDefault:"bidledger-contract"`
	Owner      string `env:"LEDGER_OWNER,required"`
	Name       string `env:"LEDGER_NAME" envDefault:"auction"`
	Denom      string `env:"LEDGER_DENOM" envDefault:"atom"`
	Tick       string `env:"LEDGER_TICK" envDefault:"1"`
	Commission string `env:"LEDGER_COMMISSION" envDefault:"0"`
	// Genesis holds "<address>=<coin>" balances minted at instantiation.
	Genesis []string `env:"LEDGER_GENESIS" envSeparator:","`
}

// GenesisBalance is one parsed LEDGER_GENESIS entry.
type GenesisBalance struct {
	Address core.Identity
	Coin    core.Coin
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("LEDGER_MAX_WORKERS must be positive, got %d", c.MaxWorkers)
	}
	if c.VsockPort == 0 && strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("either LEDGER_VSOCK_PORT or LEDGER_LISTEN_ADDR is required")
	}
	if err := core.Identity(c.Contract).Validate(); err != nil {
		return fmt.Errorf("LEDGER_CONTRACT: %w", err)
	}
	if err := core.Identity(c.Owner).Validate(); err != nil {
		return fmt.Errorf("LEDGER_OWNER: %w", err)
	}
	if c.Owner == c.Contract {
		return fmt.Errorf("LEDGER_OWNER must differ from LEDGER_CONTRACT")
	}
	if _, err := c.InstantiateParams(); err != nil {
		return err
	}
	if _, err := c.GenesisBalances(); err != nil {
		return err
	}
	return nil
}

func (c Config) InstantiateParams() (core.InstantiateParams, error) {
	tick, err := core.ParseAmount(c.Tick)
	if err != nil {
		return core.InstantiateParams{}, fmt.Errorf("LEDGER_TICK: %w", err)
	}
	commission, err := core.ParseAmount(c.Commission)
	if err != nil {
		return core.InstantiateParams{}, fmt.Errorf("LEDGER_COMMISSION: %w", err)
	}
	return core.InstantiateParams{
		Name:       c.Name,
		Denom:      c.Denom,
		Tick:       tick,
		Commission: commission,
	}, nil
}

func (c Config) GenesisBalances() ([]GenesisBalance, error) {
	balances := make([]GenesisBalance, 0, len(c.Genesis))
	for _, entry := range c.Genesis {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, coinStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("LEDGER_GENESIS entry %q: expected <address>=<coin>", entry)
		}
		id := core.Identity(strings.TrimSpace(addr))
		if err := id.Validate(); err != nil {
			return nil, fmt.Errorf("LEDGER_GENESIS entry %q: %w", entry, err)
		}
		coin, err := core.ParseCoin(coinStr)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_GENESIS entry %q: %w", entry, err)
		}
		balances = append(balances, GenesisBalance{Address: id, Coin: coin})
	}
	return balances, nil
}
