package store

import (
	"context"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-faster/errors"

	"github.com/cloudx-io/bidledger/core"
)

const (
	auctionKey      = "auction"
	escrowPrefix    = "escrow/"
	contractInfoKey = "contract_info"
)

// coinRecord stores amounts as decimal strings; CBOR integers stop at 2^64.
type coinRecord struct {
	Denom  string `cbor:"denom"`
	Amount string `cbor:"amount"`
}

type highestRecord struct {
	Amount coinRecord `cbor:"amount"`
	Bidder string     `cbor:"bidder"`
}

type auctionRecord struct {
	Owner      string         `cbor:"owner"`
	Name       string         `cbor:"name"`
	Denom      string         `cbor:"denom"`
	Tick       coinRecord     `cbor:"tick"`
	Commission coinRecord     `cbor:"commission"`
	Status     uint8          `cbor:"status"`
	Highest    *highestRecord `cbor:"highest,omitempty"`
	Winner     *string        `cbor:"winner,omitempty"`
}

type escrowRecord struct {
	Amount    coinRecord `cbor:"amount"`
	Retracted bool       `cbor:"retracted,omitempty"`
}

// ContractInfo identifies the code that owns the stored state.
type ContractInfo struct {
	Contract string `cbor:"contract" json:"contract"`
	Version  string `cbor:"version" json:"version"`
}

// Ledger implements core.Ledger on top of a KV, usually a Txn.
type Ledger struct {
	kv KV
}

func NewLedger(kv KV) *Ledger {
	return &Ledger{kv: kv}
}

var _ core.Ledger = (*Ledger)(nil)

func (l *Ledger) LoadAuction(ctx context.Context) (*core.AuctionRecord, error) {
	data, err := l.kv.Load(ctx, auctionKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec auctionRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "decode auction record")
	}
	return rec.toCore()
}

func (l *Ledger) SaveAuction(ctx context.Context, rec *core.AuctionRecord) error {
	data, err := cbor.Marshal(fromCoreAuction(rec))
	if err != nil {
		return errors.Wrap(err, "encode auction record")
	}
	return l.kv.Save(ctx, auctionKey, data)
}

func (l *Ledger) LoadEscrow(ctx context.Context, bidder core.Identity) (*core.EscrowEntry, error) {
	data, err := l.kv.Load(ctx, escrowKey(bidder))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := decodeEscrow(data)
	if err != nil {
		return nil, errors.Wrapf(err, "escrow of %s", bidder)
	}
	return &entry, nil
}

func (l *Ledger) SaveEscrow(ctx context.Context, bidder core.Identity, entry core.EscrowEntry) error {
	data, err := cbor.Marshal(escrowRecord{
		Amount:    fromCoreCoin(entry.Amount),
		Retracted: entry.Retracted,
	})
	if err != nil {
		return errors.Wrap(err, "encode escrow entry")
	}
	return l.kv.Save(ctx, escrowKey(bidder), data)
}

func (l *Ledger) ListEscrow(ctx context.Context) (map[core.Identity]core.EscrowEntry, error) {
	entries := make(map[core.Identity]core.EscrowEntry)
	err := l.kv.Scan(ctx, escrowPrefix, func(key string, value []byte) error {
		entry, err := decodeEscrow(value)
		if err != nil {
			return errors.Wrapf(err, "escrow key %q", key)
		}
		entries[core.Identity(strings.TrimPrefix(key, escrowPrefix))] = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadContractInfo returns nil when nothing has been instantiated.
func (l *Ledger) LoadContractInfo(ctx context.Context) (*ContractInfo, error) {
	data, err := l.kv.Load(ctx, contractInfoKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info ContractInfo
	if err := cbor.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "decode contract info")
	}
	return &info, nil
}

func (l *Ledger) SaveContractInfo(ctx context.Context, info ContractInfo) error {
	data, err := cbor.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encode contract info")
	}
	return l.kv.Save(ctx, contractInfoKey, data)
}

func escrowKey(bidder core.Identity) string {
	return escrowPrefix + string(bidder)
}

func decodeEscrow(data []byte) (core.EscrowEntry, error) {
	var rec escrowRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return core.EscrowEntry{}, errors.Wrap(err, "decode escrow entry")
	}
	amount, err := rec.Amount.toCore()
	if err != nil {
		return core.EscrowEntry{}, err
	}
	return core.EscrowEntry{Amount: amount, Retracted: rec.Retracted}, nil
}

func fromCoreCoin(c core.Coin) coinRecord {
	return coinRecord{Denom: c.Denom, Amount: c.Amount.String()}
}

func (c coinRecord) toCore() (core.Coin, error) {
	amount, err := core.ParseAmount(c.Amount)
	if err != nil {
		return core.Coin{}, errors.Wrap(err, "decode amount")
	}
	return core.Coin{Denom: c.Denom, Amount: amount}, nil
}

func fromCoreAuction(rec *core.AuctionRecord) auctionRecord {
	out := auctionRecord{
		Owner:      string(rec.Owner),
		Name:       rec.Name,
		Denom:      rec.Denom,
		Tick:       fromCoreCoin(rec.Tick),
		Commission: fromCoreCoin(rec.Commission),
		Status:     uint8(rec.Status),
	}
	if rec.Highest != nil {
		out.Highest = &highestRecord{
			Amount: fromCoreCoin(rec.Highest.Amount),
			Bidder: string(rec.Highest.Bidder),
		}
	}
	if rec.Winner != nil {
		w := string(*rec.Winner)
		out.Winner = &w
	}
	return out
}

func (r auctionRecord) toCore() (*core.AuctionRecord, error) {
	tick, err := r.Tick.toCore()
	if err != nil {
		return nil, errors.Wrap(err, "tick")
	}
	commission, err := r.Commission.toCore()
	if err != nil {
		return nil, errors.Wrap(err, "commission")
	}

	rec := &core.AuctionRecord{
		Owner:      core.Identity(r.Owner),
		Name:       r.Name,
		Denom:      r.Denom,
		Tick:       tick,
		Commission: commission,
		Status:     core.Status(r.Status),
	}
	switch rec.Status {
	case core.StatusOpening, core.StatusClosed:
	default:
		return nil, errors.Errorf("unknown auction status %d", r.Status)
	}
	if r.Highest != nil {
		amount, err := r.Highest.Amount.toCore()
		if err != nil {
			return nil, errors.Wrap(err, "highest")
		}
		rec.Highest = &core.HighestBid{Amount: amount, Bidder: core.Identity(r.Highest.Bidder)}
	}
	if r.Winner != nil {
		w := core.Identity(*r.Winner)
		rec.Winner = &w
	}
	return rec, nil
}
