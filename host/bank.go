package host

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/store"
)

const bankPrefix = "bank/"

// ErrInsufficientFunds is returned when an account cannot cover a debit.
var ErrInsufficientFunds = errors.New("insufficient funds")

// bank keeps account balances under bank/<address>/<denom> in the same
// transaction as the ledger state.
type bank struct {
	kv store.KV
}

var _ core.BalanceReader = bank{}

func balanceKey(addr core.Identity, denom string) string {
	return bankPrefix + string(addr) + "/" + denom
}

func validateDenom(denom string) error {
	if denom == "" || strings.ContainsAny(denom, "/ ") {
		return errors.Errorf("invalid denom %q", denom)
	}
	return nil
}

func (b bank) Balance(ctx context.Context, addr core.Identity, denom string) (core.Coin, error) {
	if err := validateDenom(denom); err != nil {
		return core.Coin{}, err
	}
	data, err := b.kv.Load(ctx, balanceKey(addr, denom))
	if errors.Is(err, store.ErrNotFound) {
		return core.ZeroCoin(denom), nil
	}
	if err != nil {
		return core.Coin{}, errors.Wrapf(err, "balance of %s", addr)
	}
	amount, err := core.ParseAmount(string(data))
	if err != nil {
		return core.Coin{}, errors.Wrapf(err, "decode balance of %s", addr)
	}
	return core.Coin{Denom: denom, Amount: amount}, nil
}

func (b bank) set(ctx context.Context, addr core.Identity, c core.Coin) error {
	return b.kv.Save(ctx, balanceKey(addr, c.Denom), []byte(c.Amount.String()))
}

func (b bank) credit(ctx context.Context, addr core.Identity, c core.Coin) error {
	balance, err := b.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	next, err := core.Add(balance, c)
	if err != nil {
		return err
	}
	return b.set(ctx, addr, next)
}

func (b bank) debit(ctx context.Context, addr core.Identity, c core.Coin) error {
	balance, err := b.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	if balance.Amount.Cmp(c.Amount) < 0 {
		return errors.Wrapf(ErrInsufficientFunds, "%s holds %s, needs %s", addr, balance, c)
	}
	next, err := core.Sub(balance, c)
	if err != nil {
		return err
	}
	return b.set(ctx, addr, next)
}

func (b bank) transfer(ctx context.Context, from, to core.Identity, c core.Coin) error {
	if c.IsZero() {
		return nil
	}
	if err := b.debit(ctx, from, c); err != nil {
		return err
	}
	return b.credit(ctx, to, c)
}
