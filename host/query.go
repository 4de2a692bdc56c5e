package host

import (
	"context"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/store"
)

func (h *Host) TotalBid(ctx context.Context, addr core.Identity) (core.Coin, error) {
	var out core.Coin
	err := h.view(ctx, func(e *core.Engine, _ bank) error {
		var err error
		out, err = e.TotalBid(ctx, addr)
		return err
	})
	return out, err
}

func (h *Host) HighestOfBid(ctx context.Context) (*core.HighestBid, error) {
	var out *core.HighestBid
	err := h.view(ctx, func(e *core.Engine, _ bank) error {
		var err error
		out, err = e.HighestOfBid(ctx)
		return err
	})
	return out, err
}

func (h *Host) Winner(ctx context.Context) (*core.Identity, error) {
	var out *core.Identity
	err := h.view(ctx, func(e *core.Engine, _ bank) error {
		var err error
		out, err = e.Winner(ctx)
		return err
	})
	return out, err
}

func (h *Host) Config(ctx context.Context) (*core.AuctionConfig, error) {
	var out *core.AuctionConfig
	err := h.view(ctx, func(e *core.Engine, _ bank) error {
		var err error
		out, err = e.Config(ctx)
		return err
	})
	return out, err
}

func (h *Host) Standings(ctx context.Context) ([]core.Standing, error) {
	var out []core.Standing
	err := h.view(ctx, func(e *core.Engine, _ bank) error {
		var err error
		out, err = e.Standings(ctx)
		return err
	})
	return out, err
}

// Balance reports the bank balance of any account, including the contract.
func (h *Host) Balance(ctx context.Context, addr core.Identity, denom string) (core.Coin, error) {
	if err := addr.Validate(); err != nil {
		return core.Coin{}, err
	}
	var out core.Coin
	err := h.view(ctx, func(_ *core.Engine, b bank) error {
		var err error
		out, err = b.Balance(ctx, addr, denom)
		return err
	})
	return out, err
}

// ContractInfo reports which contract code instantiated the stored state,
// or nil when nothing has been instantiated.
func (h *Host) ContractInfo(ctx context.Context) (*store.ContractInfo, error) {
	var out *store.ContractInfo
	err := h.read(ctx, func(txn store.Txn) error {
		var err error
		out, err = store.NewLedger(txn).LoadContractInfo(ctx)
		return err
	})
	return out, err
}
