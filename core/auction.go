package core

import (
	"context"
	"fmt"
	"strings"
)

const (
	ContractName    = "bidledger"
	ContractVersion = "0.1.0"
)

// Engine runs auction commands against a Ledger. Every operation loads the
// aggregates it needs, validates completely, and only then stages writes, so
// a rejected command never leaves partial state behind.
type Engine struct {
	ledger Ledger
}

// NewEngine returns an engine bound to the ledger of one invocation.
func NewEngine(ledger Ledger) *Engine {
	return &Engine{ledger: ledger}
}

// Instantiate creates the auction record owned by owner.
func (e *Engine) Instantiate(ctx context.Context, owner Identity, params InstantiateParams) (*Response, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, newError(CodeInvalidConfig, "auction name is required")
	}
	denom := strings.TrimSpace(params.Denom)
	if denom == "" {
		return nil, newError(CodeInvalidConfig, "denom is required")
	}

	existing, err := e.ledger.LoadAuction(ctx)
	if err != nil {
		return nil, fmt.Errorf("load auction: %w", err)
	}
	if existing != nil {
		return nil, newError(CodeAlreadyInstantiated, fmt.Sprintf("auction %q already exists", existing.Name))
	}

	rec := &AuctionRecord{
		Owner:      owner,
		Name:       name,
		Denom:      denom,
		Tick:       Coin{Denom: denom, Amount: params.Tick},
		Commission: Coin{Denom: denom, Amount: params.Commission},
		Status:     StatusOpening,
	}
	if err := e.ledger.SaveAuction(ctx, rec); err != nil {
		return nil, fmt.Errorf("save auction: %w", err)
	}

	resp := &Response{}
	resp.addAttribute("action", "instantiate")
	resp.addAttribute("owner", owner.String())
	resp.addAttribute("name", name)
	return resp, nil
}

// Bid adds the attached funds to the caller's cumulative escrow and makes
// the caller the leader.
//
// Processing flow:
//  1. Reject unless the auction is opening
//  2. Reject the owner
//  3. Sum the attached funds (all must be in the auction denom)
//  4. candidate = prior escrow + spread
//  5. Reject rounds below the tick/commission minimum
//  6. Reject unless candidate strictly exceeds the current highest
//  7. Save the escrow entry and the new leader
//
// Funds have already been moved to the contract by the host; Bid emits no
// transfer.
func (e *Engine) Bid(ctx context.Context, info Info) (*Response, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	if err := info.Sender.Validate(); err != nil {
		return nil, err
	}
	if err := assertIsNot(info.Sender, &rec.Owner, "owner"); err != nil {
		return nil, err
	}
	if rec.Status != StatusOpening {
		return nil, newError(CodeAlreadyClosed, "bidding is closed")
	}

	spread, err := Sum(info.Funds, rec.Denom)
	if err != nil {
		return nil, err
	}

	prior, err := e.ledger.LoadEscrow(ctx, info.Sender)
	if err != nil {
		return nil, fmt.Errorf("load escrow for %s: %w", info.Sender, err)
	}
	priorAmount := ZeroCoin(rec.Denom)
	if prior != nil {
		priorAmount = prior.Amount
	}

	candidate, err := Add(priorAmount, spread)
	if err != nil {
		return nil, err
	}
	if err := checkSpread(spread, rec); err != nil {
		return nil, err
	}
	if !exceedsHighest(candidate, rec.Highest) {
		return nil, bidTooLow(rec.highestAmount())
	}

	rec.Highest = &HighestBid{Amount: candidate, Bidder: info.Sender}
	if err := e.ledger.SaveEscrow(ctx, info.Sender, EscrowEntry{Amount: candidate}); err != nil {
		return nil, fmt.Errorf("save escrow for %s: %w", info.Sender, err)
	}
	if err := e.ledger.SaveAuction(ctx, rec); err != nil {
		return nil, fmt.Errorf("save auction: %w", err)
	}

	resp := &Response{}
	resp.addAttribute("action", "bid")
	resp.addAttribute("sender", info.Sender.String())
	resp.addAttribute("spread", spread.Amount.String())
	return resp, nil
}

// Close ends bidding, fixes the winner and pays the winning amount to the
// owner.
//
// The closed status is saved before the payout is checked; if the balance
// check fails the error aborts the whole invocation and the host discards
// the staged write. An auction closed without bids emits no transfer.
func (e *Engine) Close(ctx context.Context, env Env, info Info) (*Response, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertIs(info.Sender, rec.Owner, "owner"); err != nil {
		return nil, err
	}
	if rec.Status != StatusOpening {
		return nil, newError(CodeAlreadyClosed, "auction is already closed")
	}

	rec.Status = StatusClosed
	if rec.Highest != nil {
		rec.Winner = identityPtr(rec.Highest.Bidder)
	}
	if err := e.ledger.SaveAuction(ctx, rec); err != nil {
		return nil, fmt.Errorf("save auction: %w", err)
	}

	resp := &Response{}
	resp.addAttribute("action", "close")
	resp.addAttribute("sender", info.Sender.String())
	if rec.Highest == nil {
		return resp, nil
	}

	payout := rec.Highest.Amount
	if err := ensureBalance(ctx, env, payout); err != nil {
		return nil, err
	}
	resp.Transfers = append(resp.Transfers, Transfer{To: rec.Owner, Amount: payout})
	resp.addAttribute("winner", rec.Winner.String())
	resp.addAttribute("payout", payout.Amount.String())
	return resp, nil
}

// Retract refunds a losing bidder's escrow minus the commission.
//
// Authorization is always checked against the caller. receiver, when set,
// selects whose escrow is refunded and who receives it; it may name neither
// the owner nor the winner. A refunded entry is marked retracted and can
// never be refunded again.
func (e *Engine) Retract(ctx context.Context, env Env, info Info, receiver *Identity) (*Response, error) {
	rec, err := e.loadAuction(ctx)
	if err != nil {
		return nil, err
	}
	if err := info.Sender.Validate(); err != nil {
		return nil, err
	}
	if rec.Status != StatusClosed {
		return nil, newError(CodeNotYetClosed, "auction is still opening")
	}
	if err := assertIsNot(info.Sender, &rec.Owner, "owner"); err != nil {
		return nil, err
	}
	if err := assertIsNot(info.Sender, rec.Winner, "winner"); err != nil {
		return nil, err
	}

	target := info.Sender
	if receiver != nil {
		if err := receiver.Validate(); err != nil {
			return nil, err
		}
		if err := assertIsNot(*receiver, &rec.Owner, "owner"); err != nil {
			return nil, err
		}
		if err := assertIsNot(*receiver, rec.Winner, "winner"); err != nil {
			return nil, err
		}
		target = *receiver
	}

	entry, err := e.ledger.LoadEscrow(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("load escrow for %s: %w", target, err)
	}
	if entry == nil || entry.Amount.IsZero() {
		return nil, newError(CodeUnauthorized, fmt.Sprintf("%s has nothing to retract", target))
	}
	if entry.Retracted {
		return nil, newError(CodeAlreadyRetracted, fmt.Sprintf("escrow of %s was already retracted", target))
	}

	refund, err := Sub(entry.Amount, rec.Commission)
	if err != nil {
		return nil, err
	}
	if err := ensureBalance(ctx, env, refund); err != nil {
		return nil, err
	}

	entry.Retracted = true
	if err := e.ledger.SaveEscrow(ctx, target, *entry); err != nil {
		return nil, fmt.Errorf("save escrow for %s: %w", target, err)
	}

	resp := &Response{}
	if !refund.IsZero() {
		resp.Transfers = append(resp.Transfers, Transfer{To: target, Amount: refund})
	}
	resp.addAttribute("action", "retract")
	resp.addAttribute("sender", info.Sender.String())
	resp.addAttribute("receiver", target.String())
	resp.addAttribute("refund", refund.Amount.String())
	return resp, nil
}

func (e *Engine) loadAuction(ctx context.Context) (*AuctionRecord, error) {
	rec, err := e.ledger.LoadAuction(ctx)
	if err != nil {
		return nil, fmt.Errorf("load auction: %w", err)
	}
	if rec == nil {
		return nil, newError(CodeNotInstantiated, "auction has not been instantiated")
	}
	return rec, nil
}

func (rec *AuctionRecord) highestAmount() Coin {
	if rec.Highest == nil {
		return ZeroCoin(rec.Denom)
	}
	return rec.Highest.Amount
}

// ensureBalance verifies the contract actually holds what the ledger owes.
func ensureBalance(ctx context.Context, env Env, owed Coin) error {
	if env.Bank == nil {
		return fmt.Errorf("no bank available to check contract balance")
	}
	balance, err := env.Bank.Balance(ctx, env.Contract, owed.Denom)
	if err != nil {
		return fmt.Errorf("query contract balance: %w", err)
	}
	if balance.Amount.Cmp(owed.Amount) < 0 {
		return balanceInconsistency(balance, owed)
	}
	return nil
}
