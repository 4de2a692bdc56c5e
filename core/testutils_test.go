package core

import (
	"context"
	"testing"
)

const testDenom = "atom"

var (
	owner = Identity("sei1zj6fjsc2gkce878ukzg6g9wy8cl8p554dlggxd")
	alice = Identity("sei18rszd3tmgpjvjwq2qajtmn5jqvtscd2yuygl4z")
	bob   = Identity("sei1aan9kqywf4rf274cal0hj6eyly6wu0uv7edxy2")
	carol = Identity("sei1q9cd0dlk5w6d2zjv4a0m7g7r3l6hx0cz0ppkqp")
)

const contractAddr = Identity("sei1contract")

// memLedger is a map-backed Ledger. Records are copied on load and save so
// tests observe only persisted state.
type memLedger struct {
	auction *AuctionRecord
	escrow  map[Identity]EscrowEntry
}

func newMemLedger() *memLedger {
	return &memLedger{escrow: make(map[Identity]EscrowEntry)}
}

func (m *memLedger) LoadAuction(context.Context) (*AuctionRecord, error) {
	if m.auction == nil {
		return nil, nil
	}
	return cloneRecord(m.auction), nil
}

func (m *memLedger) SaveAuction(_ context.Context, rec *AuctionRecord) error {
	m.auction = cloneRecord(rec)
	return nil
}

func (m *memLedger) LoadEscrow(_ context.Context, bidder Identity) (*EscrowEntry, error) {
	entry, ok := m.escrow[bidder]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *memLedger) SaveEscrow(_ context.Context, bidder Identity, entry EscrowEntry) error {
	m.escrow[bidder] = entry
	return nil
}

func (m *memLedger) ListEscrow(context.Context) (map[Identity]EscrowEntry, error) {
	out := make(map[Identity]EscrowEntry, len(m.escrow))
	for k, v := range m.escrow {
		out[k] = v
	}
	return out, nil
}

func cloneRecord(rec *AuctionRecord) *AuctionRecord {
	c := *rec
	if rec.Highest != nil {
		h := *rec.Highest
		c.Highest = &h
	}
	if rec.Winner != nil {
		w := *rec.Winner
		c.Winner = &w
	}
	return &c
}

// fakeBank reports a fixed contract balance.
type fakeBank struct {
	balances map[Identity]Coin
}

func (b *fakeBank) Balance(_ context.Context, addr Identity, denom string) (Coin, error) {
	c, ok := b.balances[addr]
	if !ok || c.Denom != denom {
		return ZeroCoin(denom), nil
	}
	return c, nil
}

// testAuction instantiates an auction owned by owner and returns the engine,
// its ledger and an env whose contract balance tracks accepted bids.
type testAuction struct {
	engine *Engine
	ledger *memLedger
	bank   *fakeBank
	env    Env
}

func newTestAuction(t *testing.T, tick, commission uint64) *testAuction {
	t.Helper()
	ledger := newMemLedger()
	bank := &fakeBank{balances: map[Identity]Coin{}}
	engine := NewEngine(ledger)
	_, err := engine.Instantiate(context.Background(), owner, InstantiateParams{
		Name:       "bidding",
		Denom:      testDenom,
		Tick:       NewAmount(tick),
		Commission: NewAmount(commission),
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return &testAuction{
		engine: engine,
		ledger: ledger,
		bank:   bank,
		env:    Env{Contract: contractAddr, Bank: bank},
	}
}

// bid runs Bid and, like a host would, credits the contract on success.
func (a *testAuction) bid(t *testing.T, sender Identity, amounts ...uint64) error {
	t.Helper()
	funds := make([]Coin, 0, len(amounts))
	for _, v := range amounts {
		funds = append(funds, NewCoin(v, testDenom))
	}
	_, err := a.engine.Bid(context.Background(), Info{Sender: sender, Funds: funds})
	if err != nil {
		return err
	}
	for _, f := range funds {
		a.credit(t, f)
	}
	return nil
}

func (a *testAuction) credit(t *testing.T, c Coin) {
	t.Helper()
	current, _ := a.bank.Balance(context.Background(), contractAddr, c.Denom)
	sum, err := Add(current, c)
	if err != nil {
		t.Fatalf("credit contract: %v", err)
	}
	a.bank.balances[contractAddr] = sum
}

// debit applies an emitted transfer to the contract balance.
func (a *testAuction) debit(t *testing.T, tr Transfer) {
	t.Helper()
	current, _ := a.bank.Balance(context.Background(), contractAddr, tr.Amount.Denom)
	rest, err := Sub(current, tr.Amount)
	if err != nil {
		t.Fatalf("debit contract: %v", err)
	}
	a.bank.balances[contractAddr] = rest
}

func atoms(v uint64) Coin {
	return NewCoin(v, testDenom)
}
