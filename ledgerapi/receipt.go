package ledgerapi

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	// ReceiptAlgorithm names the signature scheme of settlement receipts.
	ReceiptAlgorithm  = "ECDSA-P256"
	// ReceiptKeyPurpose is the purpose attested alongside the receipt key.
	ReceiptKeyPurpose = "settlement_receipt"
)

// EscrowLine is one escrow entry as committed to in a receipt.
type EscrowLine struct {
	Bidder    string `cbor:"bidder" json:"bidder"`
	Amount    string `cbor:"amount" json:"amount"` // coin, e.g. "5atom"
	Retracted bool   `cbor:"retracted,omitempty" json:"retracted,omitempty"`
}

// SettlementPayload is the CBOR payload signed into a settlement receipt.
// Coins are rendered as "<amount><denom>".
type SettlementPayload struct {
	ReceiptID      string       `cbor:"receipt_id" json:"receipt_id"`
	Contract       string       `cbor:"contract" json:"contract"`
	Auction        string       `cbor:"auction" json:"auction"`
	Owner          string       `cbor:"owner" json:"owner"`
	Winner         string       `cbor:"winner,omitempty" json:"winner,omitempty"`
	Payout         string       `cbor:"payout,omitempty" json:"payout,omitempty"`
	Status         string       `cbor:"status" json:"status"`
	Escrow         []EscrowLine `cbor:"escrow" json:"escrow"`
	EscrowDigest   string       `cbor:"escrow_digest" json:"escrow_digest"`
	SettlementHash string       `cbor:"settlement_hash" json:"settlement_hash"`
	Nonce          string       `cbor:"nonce" json:"nonce"`
	Timestamp      int64        `cbor:"timestamp" json:"timestamp"`
}

// SettlementReceipt is the signed receipt plus a decoded copy of its
// payload for convenience. Verifiers must use the signed bytes.
type SettlementReceipt struct {
	COSEBase64 COSEBase64         `json:"cose_base64,omitempty"`
	// COSEGzip is the same message in the compact form sent to bidders.
	COSEGzip   COSEGzip           `json:"cose_gzip,omitempty"`
	Payload    *SettlementPayload `json:"payload,omitempty"`
}

// Signed returns the signed message, preferring the base64 form.
func (r *SettlementReceipt) Signed() (COSE, error) {
	switch {
	case r.COSEBase64 != "":
		return r.COSEBase64.Decode()
	case r.COSEGzip != "":
		return r.COSEGzip.Decompress()
	default:
		return nil, fmt.Errorf("receipt carries no signed message")
	}
}

// Encode returns the deterministic CBOR encoding of p.
func (p *SettlementPayload) Encode() ([]byte, error) {
	data, err := receiptEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode settlement payload: %w", err)
	}
	return data, nil
}

// DecodeSettlementPayload decodes the payload bytes of a receipt.
func DecodeSettlementPayload(data []byte) (*SettlementPayload, error) {
	var p SettlementPayload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode settlement payload: %w", err)
	}
	return &p, nil
}

var receiptEncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()
