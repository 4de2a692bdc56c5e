package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Identity is an account address. Identities are opaque to the ledger
// beyond the checks in Validate.
type Identity string

// Validate rejects identities that cannot be used as storage keys.
func (id Identity) Validate() error {
	s := string(id)
	if s == "" {
		return newError(CodeInvalidAddress, "empty address")
	}
	// '/' separates storage keys; '|' and ':' separate escrow digest fields.
	if i := strings.IndexAny(s, "/|:"); i >= 0 {
		return newError(CodeInvalidAddress, fmt.Sprintf("address %q contains %q", s, s[i]))
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return newError(CodeInvalidAddress, fmt.Sprintf("address %q contains invalid characters", s))
		}
	}
	return nil
}

func (id Identity) String() string {
	return string(id)
}

// Status is the lifecycle state of an auction.
type Status uint8

const (
	StatusOpening Status = iota
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "opening":
		*s = StatusOpening
	case "closed":
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown auction status %q", str)
	}
	return nil
}

// HighestBid is the current leading cumulative bid.
type HighestBid struct {
	Amount Coin     `json:"amount"`
	Bidder Identity `json:"bidder"`
}

// AuctionRecord is the durable aggregate for one auction.
type AuctionRecord struct {
	Owner      Identity    `json:"owner"`
	Name       string      `json:"name"`
	Denom      string      `json:"denom"`
	Tick       Coin        `json:"tick"`
	Commission Coin        `json:"commission"`
	Status     Status      `json:"status"`
	Highest    *HighestBid `json:"highest,omitempty"`
	Winner     *Identity   `json:"winner,omitempty"`
}

// EscrowEntry is a bidder's cumulative contribution across all rounds.
type EscrowEntry struct {
	Amount    Coin `json:"amount"`
	Retracted bool `json:"retracted,omitempty"`
}

// Transfer instructs the host to move Amount from the contract to To.
// The ledger only computes transfers; it never executes them.
type Transfer struct {
	To     Identity `json:"to"`
	Amount Coin     `json:"amount"`
}

// Attribute is a key/value pair describing an accepted invocation.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the outcome of an accepted command: zero or one transfer plus
// observability attributes.
type Response struct {
	Transfers  []Transfer  `json:"transfers,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

func (r *Response) addAttribute(key, value string) {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
}

// Attribute returns the value recorded for key, or "" when absent.
func (r *Response) Attribute(key string) string {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Info describes who invoked a command and which funds were attached.
type Info struct {
	Sender Identity
	Funds  []Coin
}

// BalanceReader reports externally observable balances.
type BalanceReader interface {
	Balance(ctx context.Context, addr Identity, denom string) (Coin, error)
}

// Env is supplied by the host for every invocation.
type Env struct {
	// Contract is the address holding escrowed funds.
	Contract Identity
	Bank     BalanceReader
}

// InstantiateParams configures a new auction.
type InstantiateParams struct {
	Name       string `json:"name"`
	Denom      string `json:"denom"`
	Tick       Amount `json:"tick"`
	Commission Amount `json:"commission"`
}

// Standing is one bidder's position in the ranking of escrow entries.
type Standing struct {
	Rank   int      `json:"rank"`
	Bidder Identity `json:"bidder"`
	Amount Coin     `json:"amount"`
}

// Ledger loads and saves the auction aggregates at the boundary of every
// engine operation. Implementations stage writes in the caller's
// transaction; the engine never holds them across invocations.
type Ledger interface {
	// LoadAuction returns nil when no auction has been instantiated.
	LoadAuction(ctx context.Context) (*AuctionRecord, error)
	SaveAuction(ctx context.Context, rec *AuctionRecord) error
	// LoadEscrow returns nil when the bidder has no entry.
	LoadEscrow(ctx context.Context, bidder Identity) (*EscrowEntry, error)
	SaveEscrow(ctx context.Context, bidder Identity, entry EscrowEntry) error
	ListEscrow(ctx context.Context) (map[Identity]EscrowEntry, error)
}
