package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/host"
	"github.com/cloudx-io/bidledger/ledgerapi"
)

// BuildSettlementPayload commits to the state captured by a close.
func BuildSettlementPayload(contract core.Identity, st *host.Settlement, nonce string, now time.Time) *ledgerapi.SettlementPayload {
	rec := st.Auction

	var payout *core.Coin
	if rec.Winner != nil && rec.Highest != nil {
		payout = &rec.Highest.Amount
	}

	payload := &ledgerapi.SettlementPayload{
		ReceiptID:      uuid.NewString(),
		Contract:       contract.String(),
		Auction:        rec.Name,
		Owner:          rec.Owner.String(),
		Status:         rec.Status.String(),
		Escrow:         escrowLines(st.Escrow),
		EscrowDigest:   core.ComputeEscrowDigest(st.Escrow, nonce),
		SettlementHash: core.ComputeSettlementHash(rec.Name, rec.Owner, rec.Winner, payout, nonce),
		Nonce:          nonce,
		Timestamp:      now.Unix(),
	}
	if rec.Winner != nil {
		payload.Winner = rec.Winner.String()
	}
	if payout != nil {
		payload.Payout = payout.String()
	}
	return payload
}

func escrowLines(entries map[core.Identity]core.EscrowEntry) []ledgerapi.EscrowLine {
	lines := make([]ledgerapi.EscrowLine, 0, len(entries))
	for bidder, entry := range entries {
		lines = append(lines, ledgerapi.EscrowLine{
			Bidder:    bidder.String(),
			Amount:    entry.Amount.String(),
			Retracted: entry.Retracted,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Bidder < lines[j].Bidder })
	return lines
}

// SignSettlement wraps payload in a COSE_Sign1 message signed with ES256.
func SignSettlement(km *KeyManager, payload *ledgerapi.SettlementPayload) (ledgerapi.COSE, error) {
	data, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	kid, err := km.KeyID()
	if err != nil {
		return nil, err
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelKeyID] = []byte(kid)
	msg.Payload = data

	if err := msg.Sign(rand.Reader, nil, km.signer); err != nil {
		return nil, fmt.Errorf("sign settlement receipt: %w", err)
	}
	out, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal settlement receipt: %w", err)
	}
	return ledgerapi.COSE(out), nil
}

// IssueReceipt builds, signs and encodes the receipt for a settlement.
func IssueReceipt(km *KeyManager, contract core.Identity, st *host.Settlement, now time.Time) (*ledgerapi.SettlementReceipt, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	payload := BuildSettlementPayload(contract, st, nonce, now)
	signed, err := SignSettlement(km, payload)
	if err != nil {
		return nil, err
	}
	compressed, err := signed.CompressGzip()
	if err != nil {
		return nil, fmt.Errorf("compress settlement receipt: %w", err)
	}
	return &ledgerapi.SettlementReceipt{
		COSEBase64: signed.EncodeBase64(),
		COSEGzip:   compressed,
		Payload:    payload,
	}, nil
}

func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate secure nonce - %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
