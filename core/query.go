package core

import (
	"context"
	"fmt"
)

// AuctionConfig is the immutable configuration plus current status.
type AuctionConfig struct {
	Owner      Identity `json:"owner"`
	Name       string   `json:"name"`
	Denom      string   `json:"denom"`
	Tick       Coin     `json:"tick"`
	Commission Coin     `json:"commission"`
	Status     Status   `json:"status"`
}

// TotalBid returns the amount addr would receive from Retract: its
// cumulative escrow minus the commission, or zero when addr has no
// outstanding entry.
func (e *Engine) TotalBid(ctx context.Context, addr Identity) (Coin, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return Coin{}, err
	}
	entry, err := e.ledger.LoadEscrow(ctx, addr)
	if err != nil {
		return Coin{}, fmt.Errorf("load escrow for %s: %w", addr, err)
	}
	if entry == nil || entry.Retracted {
		return ZeroCoin(rec.Denom), nil
	}
	net, err := Sub(entry.Amount, rec.Commission)
	if err != nil {
		return Coin{}, fmt.Errorf("escrow of %s below commission: %w", addr, err)
	}
	return net, nil
}

// HighestOfBid returns the current leader, or nil before the first bid.
func (e *Engine) HighestOfBid(ctx context.Context) (*HighestBid, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Highest, nil
}

// Winner returns the winner, which is only set once the auction closed
// with at least one bid.
func (e *Engine) Winner(ctx context.Context) (*Identity, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Winner, nil
}

func (e *Engine) Config(ctx context.Context) (*AuctionConfig, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	return &AuctionConfig{
		Owner:      rec.Owner,
		Name:       rec.Name,
		Denom:      rec.Denom,
		Tick:       rec.Tick,
		Commission: rec.Commission,
		Status:     rec.Status,
	}, nil
}

// Standings ranks every outstanding escrow entry.
func (e *Engine) Standings(ctx context.Context) ([]Standing, error) {
	if _, err := e.loadAuction(ctx); err != nil {
		return nil, err
	}
	entries, err := e.ledger.ListEscrow(ctx)
	if err != nil {
		return nil, fmt.Errorf("list escrow: %w", err)
	}
	return RankEscrow(entries), nil
}
