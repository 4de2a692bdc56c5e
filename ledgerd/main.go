// Command ledgerd serves one auction ledger over vsock or TCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/host"
	"github.com/cloudx-io/bidledger/store"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level.SetLevel(lvl)
	return cfg.Build()
}

func openStore(cfg Config) (store.Store, error) {
	if cfg.DBPath == "" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(cfg.DBPath)
}

// bootstrap instantiates the auction and mints genesis balances on first
// start. A store that already holds an auction is resumed only when its
// contract info matches this build.
func bootstrap(ctx context.Context, cfg Config, h *host.Host, logger *zap.Logger) error {
	_, err := h.Config(ctx)
	if err == nil {
		info, err := h.ContractInfo(ctx)
		if err != nil {
			return fmt.Errorf("read contract info: %w", err)
		}
		if info == nil || info.Contract != core.ContractName || info.Version != core.ContractVersion {
			return fmt.Errorf("stored state was not written by %s %s", core.ContractName, core.ContractVersion)
		}
		logger.Info("resuming existing auction", zap.String("version", info.Version))
		return nil
	}
	if !errors.Is(err, core.ErrNotInstantiated) {
		return fmt.Errorf("read auction config: %w", err)
	}

	balances, err := cfg.GenesisBalances()
	if err != nil {
		return err
	}
	for _, b := range balances {
		if err := h.Mint(ctx, b.Address, b.Coin); err != nil {
			return fmt.Errorf("mint genesis balance: %w", err)
		}
	}

	params, err := cfg.InstantiateParams()
	if err != nil {
		return err
	}
	if _, err := h.Instantiate(ctx, core.Identity(cfg.Owner), params); err != nil {
		return fmt.Errorf("instantiate auction: %w", err)
	}
	logger.Info("auction instantiated",
		zap.String("name", params.Name),
		zap.Int("genesis_accounts", len(balances)))
	return nil
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()

	h, err := host.New(s, core.Identity(cfg.Contract), logger)
	if err != nil {
		return err
	}
	if err := bootstrap(ctx, cfg, h, logger); err != nil {
		return err
	}

	keyManager, err := NewKeyManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	logger.Info("receipt key manager initialized")

	return NewServer(cfg, h, keyManager, logger).Run(ctx)
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ledgerd stopped", zap.Error(err))
	}
}
