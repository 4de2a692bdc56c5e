package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/host"
	"github.com/cloudx-io/bidledger/store"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LEDGER_MAX_WORKERS", "8")
	t.Setenv("LEDGER_OWNER", testOwner)

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	check.Equal(t, "127.0.0.1:5000", cfg.ListenAddr)
	check.Equal(t, uint32(0), cfg.VsockPort)
	check.Equal(t, 8, cfg.MaxWorkers)
	check.Equal(t, 30*time.Second, cfg.ReadTimeout)
	check.Equal(t, "atom", cfg.Denom)
	check.Equal(t, "", cfg.DBPath)

	params, err := cfg.InstantiateParams()
	assert.NoError(t, err)
	check.Equal(t, core.NewAmount(1), params.Tick)
	check.True(t, params.Commission.IsZero())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LEDGER_MAX_WORKERS", "2")
	t.Setenv("LEDGER_OWNER", testOwner)
	t.Setenv("LEDGER_VSOCK_PORT", "5005")
	t.Setenv("LEDGER_READ_TIMEOUT", "2s")
	t.Setenv("LEDGER_GENESIS", testAlice+"=10atom,"+testBob+"=7atom")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	check.Equal(t, uint32(5005), cfg.VsockPort)
	check.Equal(t, 2*time.Second, cfg.ReadTimeout)

	balances, err := cfg.GenesisBalances()
	assert.NoError(t, err)
	check.Equal(t, []GenesisBalance{
		{Address: testAlice, Coin: core.NewCoin(10, "atom")},
		{Address: testBob, Coin: core.NewCoin(7, "atom")},
	}, balances)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("LEDGER_OWNER", testOwner)

	_, err := LoadConfig()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "parse env:"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "no workers", mutate: func(c *Config) { c.MaxWorkers = 0 }},
		{name: "no listener", mutate: func(c *Config) { c.ListenAddr = "" }},
		{name: "bad owner", mutate: func(c *Config) { c.Owner = "has space" }},
		{name: "bad contract", mutate: func(c *Config) { c.Contract = "a/b" }},
		{name: "owner is contract", mutate: func(c *Config) { c.Owner = c.Contract }},
		{name: "separator in owner", mutate: func(c *Config) { c.Owner = "sei1a|b" }},
		{name: "fractional tick", mutate: func(c *Config) { c.Tick = "1.5" }},
		{name: "negative commission", mutate: func(c *Config) { c.Commission = "-1" }},
		{name: "genesis without coin", mutate: func(c *Config) { c.Genesis = []string{testAlice} }},
		{name: "genesis bad coin", mutate: func(c *Config) { c.Genesis = []string{testAlice + "=atom"} }},
	}

	check.NoError(t, testConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			check.Error(t, cfg.Validate())
		})
	}
}

func TestBootstrap_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	h, err := host.New(store.NewMemory(), core.Identity(cfg.Contract), zap.NewNop())
	assert.NoError(t, err)

	assert.NoError(t, bootstrap(ctx, cfg, h, zap.NewNop()))
	assert.NoError(t, bootstrap(ctx, cfg, h, zap.NewNop()))

	// Genesis is minted once.
	balance, err := h.Balance(ctx, testAlice, "atom")
	assert.NoError(t, err)
	check.Equal(t, core.NewCoin(10, "atom"), balance)

	got, err := h.Config(ctx)
	assert.NoError(t, err)
	check.Equal(t, "bidding", got.Name)
}

func TestBootstrap_RejectsForeignState(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := store.NewMemory()
	h, err := host.New(s, core.Identity(cfg.Contract), zap.NewNop())
	assert.NoError(t, err)
	assert.NoError(t, bootstrap(ctx, cfg, h, zap.NewNop()))

	txn, err := s.Begin(ctx)
	assert.NoError(t, err)
	assert.NoError(t, store.NewLedger(txn).SaveContractInfo(ctx, store.ContractInfo{Contract: "crates.io:other", Version: "9.9.9"}))
	assert.NoError(t, txn.Commit())

	err = bootstrap(ctx, cfg, h, zap.NewNop())
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), core.ContractName))
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	assert.NoError(t, err)
	check.NotNil(t, logger)

	_, err = newLogger("loud")
	check.Error(t, err)
}
