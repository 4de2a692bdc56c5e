// Package host runs the auction engine the way a chain would: every
// invocation is one storage transaction covering fund attachment, the
// engine call and the transfers it emits.
package host

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/store"
)

// ErrUnexpectedFunds is returned when funds are attached to a command that
// does not accept them.
var ErrUnexpectedFunds = errors.New("command does not accept funds")

type CommandKind string

const (
	CommandBid     CommandKind = "bid"
	CommandClose   CommandKind = "close"
	CommandRetract CommandKind = "retract"
)

// Command is one state-changing call. Receiver is only read by retract.
type Command struct {
	Kind     CommandKind
	Receiver *core.Identity
}

// Settlement is the auction state captured in the transaction that closed
// it.
type Settlement struct {
	Auction core.AuctionRecord
	Escrow  map[core.Identity]core.EscrowEntry
}

// Result describes an accepted invocation.
type Result struct {
	InvocationID string
	Response     *core.Response
	// Settlement is set for close.
	Settlement *Settlement
}

// Host owns the store and the contract account of one auction.
type Host struct {
	mu       sync.Mutex
	store    store.Store
	contract core.Identity
	logger   *zap.Logger
}

func New(s store.Store, contract core.Identity, logger *zap.Logger) (*Host, error) {
	if err := contract.Validate(); err != nil {
		return nil, errors.Wrap(err, "contract address")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{store: s, contract: contract, logger: logger}, nil
}

// Contract returns the address holding escrowed funds.
func (h *Host) Contract() core.Identity {
	return h.contract
}

// Mint credits coins to addr. It is used for genesis balances.
func (h *Host) Mint(ctx context.Context, addr core.Identity, coins ...core.Coin) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	return h.update(ctx, func(txn store.Txn) error {
		b := bank{kv: txn}
		for _, c := range coins {
			if err := validateDenom(c.Denom); err != nil {
				return err
			}
			if err := b.credit(ctx, addr, c); err != nil {
				return errors.Wrapf(err, "mint %s to %s", c, addr)
			}
		}
		return nil
	})
}

// Instantiate creates the auction and records the contract info.
func (h *Host) Instantiate(ctx context.Context, owner core.Identity, params core.InstantiateParams) (*Result, error) {
	id := uuid.NewString()
	var resp *core.Response
	err := h.update(ctx, func(txn store.Txn) error {
		if owner == h.contract {
			return &core.Error{Code: core.CodeUnauthorized, Message: "contract account cannot own the auction"}
		}
		if err := validateDenom(params.Denom); err != nil {
			return &core.Error{Code: core.CodeInvalidConfig, Message: err.Error()}
		}
		ledger := store.NewLedger(txn)
		var err error
		resp, err = core.NewEngine(ledger).Instantiate(ctx, owner, params)
		if err != nil {
			return err
		}
		return ledger.SaveContractInfo(ctx, store.ContractInfo{
			Contract: core.ContractName,
			Version:  core.ContractVersion,
		})
	})
	if err != nil {
		h.logger.Warn("instantiate rejected",
			zap.String("invocation_id", id),
			zap.String("owner", owner.String()),
			zap.Error(err))
		return nil, err
	}

	h.logger.Info("auction instantiated",
		zap.String("invocation_id", id),
		zap.String("owner", owner.String()),
		zap.String("name", resp.Attribute("name")))
	return &Result{InvocationID: id, Response: resp}, nil
}

// Execute runs cmd for sender with funds attached. Either the fund
// movement, the engine call and every emitted transfer commit together, or
// nothing does.
func (h *Host) Execute(ctx context.Context, sender core.Identity, cmd Command, funds []core.Coin) (*Result, error) {
	id := uuid.NewString()
	logger := h.logger.With(
		zap.String("invocation_id", id),
		zap.String("command", string(cmd.Kind)),
		zap.String("sender", sender.String()))

	result := &Result{InvocationID: id}
	err := h.update(ctx, func(txn store.Txn) error {
		resp, settlement, err := h.execute(ctx, txn, sender, cmd, funds)
		if err != nil {
			return err
		}
		result.Response = resp
		result.Settlement = settlement
		return nil
	})
	if err != nil {
		logger.Warn("command rejected", zap.Error(err))
		return nil, err
	}

	logger.Info("command executed", zap.Int("transfers", len(result.Response.Transfers)))
	return result, nil
}

func (h *Host) execute(ctx context.Context, txn store.Txn, sender core.Identity, cmd Command, funds []core.Coin) (*core.Response, *Settlement, error) {
	if err := sender.Validate(); err != nil {
		return nil, nil, err
	}
	// Funds sent from the escrow account would be counted without moving.
	if sender == h.contract {
		return nil, nil, &core.Error{Code: core.CodeUnauthorized, Message: "contract account cannot execute commands"}
	}
	if cmd.Receiver != nil && *cmd.Receiver == h.contract {
		return nil, nil, &core.Error{Code: core.CodeUnauthorized, Message: "contract account cannot receive a retraction"}
	}
	if cmd.Kind != CommandBid && hasFunds(funds) {
		return nil, nil, errors.Wrapf(ErrUnexpectedFunds, "%s", cmd.Kind)
	}

	b := bank{kv: txn}
	for _, c := range funds {
		if err := validateDenom(c.Denom); err != nil {
			return nil, nil, err
		}
		if err := b.transfer(ctx, sender, h.contract, c); err != nil {
			return nil, nil, err
		}
	}

	ledger := store.NewLedger(txn)
	engine := core.NewEngine(ledger)
	env := core.Env{Contract: h.contract, Bank: b}
	info := core.Info{Sender: sender, Funds: funds}

	var (
		resp *core.Response
		err  error
	)
	switch cmd.Kind {
	case CommandBid:
		resp, err = engine.Bid(ctx, info)
	case CommandClose:
		resp, err = engine.Close(ctx, env, info)
	case CommandRetract:
		resp, err = engine.Retract(ctx, env, info, cmd.Receiver)
	default:
		return nil, nil, errors.Errorf("unknown command %q", cmd.Kind)
	}
	if err != nil {
		return nil, nil, err
	}

	for _, t := range resp.Transfers {
		if err := b.transfer(ctx, h.contract, t.To, t.Amount); err != nil {
			return nil, nil, errors.Wrapf(err, "transfer %s to %s", t.Amount, t.To)
		}
	}

	if cmd.Kind != CommandClose {
		return resp, nil, nil
	}
	settlement, err := snapshot(ctx, ledger)
	if err != nil {
		return nil, nil, err
	}
	return resp, settlement, nil
}

func snapshot(ctx context.Context, ledger *store.Ledger) (*Settlement, error) {
	rec, err := ledger.LoadAuction(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("auction record missing after close")
	}
	entries, err := ledger.ListEscrow(ctx)
	if err != nil {
		return nil, err
	}
	return &Settlement{Auction: *rec, Escrow: entries}, nil
}

func hasFunds(funds []core.Coin) bool {
	for _, c := range funds {
		if !c.IsZero() {
			return true
		}
	}
	return false
}

// update runs fn in a transaction, committing only when fn succeeds.
func (h *Host) update(ctx context.Context, fn func(txn store.Txn) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	txn, err := h.store.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if rbErr := txn.Rollback(); rbErr != nil {
			h.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// read runs fn in a transaction that is always discarded.
func (h *Host) read(ctx context.Context, fn func(txn store.Txn) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	txn, err := h.store.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = txn.Rollback() }()

	return fn(txn)
}

func (h *Host) view(ctx context.Context, fn func(engine *core.Engine, b bank) error) error {
	return h.read(ctx, func(txn store.Txn) error {
		return fn(core.NewEngine(store.NewLedger(txn)), bank{kv: txn})
	})
}
