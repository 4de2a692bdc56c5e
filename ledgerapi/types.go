package ledgerapi

import (
	"encoding/json"

	"github.com/cloudx-io/bidledger/core"
)

// Request types understood by ledgerd. Every request is one JSON object
// whose "type" field selects the handler.
const (
	TypePing       = "ping"
	TypeKeyRequest = "key_request"
	TypeBid        = "bid"
	TypeClose      = "close"
	TypeRetract    = "retract"
	TypeQuery      = "query"
)

// Query names accepted in QueryRequest.Query.
const (
	QueryTotalBid     = "total_bid"
	QueryHighestOfBid = "highest_of_bid"
	QueryWinner       = "winner"
	QueryConfig       = "config"
	QueryStandings    = "standings"
	QueryBalance      = "balance"
)

// ExecuteRequest carries bid, close and retract.
type ExecuteRequest struct {
	Type   string        `json:"type"`
	Sender core.Identity `json:"sender"`
	Funds  []core.Coin   `json:"funds,omitempty"`
	// Receiver optionally redirects a retract refund.
	Receiver *core.Identity `json:"receiver,omitempty"`
}

// ExecuteResponse reports the outcome of an ExecuteRequest.
type ExecuteResponse struct {
	Type         string           `json:"type"`
	Success      bool             `json:"success"`
	Message      string           `json:"message,omitempty"`
	Code         core.Code        `json:"code,omitempty"`
	Threshold    *core.Coin       `json:"threshold,omitempty"`
	InvocationID string           `json:"invocation_id,omitempty"`
	Transfers    []core.Transfer  `json:"transfers,omitempty"`
	Attributes   []core.Attribute `json:"attributes,omitempty"`
	// Receipt is set after a successful close.
	Receipt        *SettlementReceipt `json:"receipt,omitempty"`
	ProcessingTime int64              `json:"processing_time_ms"`
}

// QueryRequest reads ledger state. Address is used by total_bid and
// balance, Denom by balance.
type QueryRequest struct {
	Type    string        `json:"type"`
	Query   string        `json:"query"`
	Address core.Identity `json:"address,omitempty"`
	Denom   string        `json:"denom,omitempty"`
}

// QueryResponse holds the JSON-encoded result of one query.
type QueryResponse struct {
	Type    string          `json:"type"`
	Query   string          `json:"query"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    core.Code       `json:"code,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// TotalBidResult is the result of total_bid.
type TotalBidResult struct {
	Total core.Coin `json:"total"`
}

// BalanceResult is the bank balance of one address in one denom.
type BalanceResult struct {
	Address core.Identity `json:"address"`
	Balance core.Coin     `json:"balance"`
}

type HighestOfBidResult struct {
	Bid *core.HighestBid `json:"bid"`
}

type WinnerResult struct {
	Winner *core.Identity `json:"winner"`
}

type StandingsResult struct {
	Standings []core.Standing `json:"standings"`
}

// KeyResponse returns the receipt verification key and its attestation.
type KeyResponse struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"` // PEM format
	// KeyAttestation is absent when ledgerd runs outside an enclave.
	KeyAttestation        *KeyAttestationDoc `json:"key_attestation,omitempty"`
	AttestationCOSEBase64 COSEBase64         `json:"attestation_cose_base64,omitempty"`
}

// ErrorResponse is returned for malformed or unknown requests.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PingResponse answers a ping.
type PingResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
