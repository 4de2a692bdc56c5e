package validation

import (
	"fmt"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/ledgerapi"
)

// VerifySettlementReceipt checks a settlement receipt against the receipt
// key returned by ledgerd. The key itself should first be checked with
// ValidateKeyAttestation.
//
// Checks performed:
//  1. COSE_Sign1 ES256 signature over the payload
//  2. Escrow digest recomputed from the escrow lines and nonce
//  3. Settlement hash recomputed from auction, owner, winner, payout and nonce
//  4. Outcome consistency: closed status, winner holds the strictly highest
//     escrow and the payout equals it
//
// Returns an error only when the inputs cannot be decoded; failed checks are
// reported in the result (call result.IsValid()).
func VerifySettlementReceipt(receiptCOSEBase64 ledgerapi.COSEBase64, publicKeyPEM string) (*ReceiptValidationResult, error) {
	coseBytes, err := receiptCOSEBase64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}
	return verifySignedReceipt(coseBytes, publicKeyPEM)
}

// VerifyReceipt is VerifySettlementReceipt for a receipt as returned by
// ledgerd, in either its base64 or gzip form. The unsigned payload copy is
// ignored.
func VerifyReceipt(receipt *ledgerapi.SettlementReceipt, publicKeyPEM string) (*ReceiptValidationResult, error) {
	if receipt == nil {
		return nil, fmt.Errorf("no receipt")
	}
	coseBytes, err := receipt.Signed()
	if err != nil {
		return nil, err
	}
	return verifySignedReceipt(coseBytes, publicKeyPEM)
}

func verifySignedReceipt(coseBytes ledgerapi.COSE, publicKeyPEM string) (*ReceiptValidationResult, error) {
	key, err := ParseReceiptKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{
		ValidationDetails: []string{},
	}

	payloadBytes, err := verifyReceiptSignature(coseBytes, key)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, err.Error())
		return result, nil
	}
	result.SignatureValid = true
	result.ValidationDetails = append(result.ValidationDetails, "Receipt signature verified")

	payload, err := ledgerapi.DecodeSettlementPayload(payloadBytes)
	if err != nil {
		return nil, err
	}
	result.Payload = payload

	entries, err := escrowEntries(payload.Escrow)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Malformed escrow: %v", err))
		return result, nil
	}

	digest := core.ComputeEscrowDigest(entries, payload.Nonce)
	if digest == payload.EscrowDigest {
		result.EscrowDigestValid = true
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Escrow digest verified (%d entries)", len(entries)))
	} else {
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Escrow digest mismatch: expected %s, got %s", payload.EscrowDigest, digest))
	}

	hash, err := settlementHash(payload)
	switch {
	case err != nil:
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Malformed settlement: %v", err))
	case hash == payload.SettlementHash:
		result.SettlementHashValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Settlement hash verified")
	default:
		result.ValidationDetails = append(result.ValidationDetails,
			fmt.Sprintf("Settlement hash mismatch: expected %s, got %s", payload.SettlementHash, hash))
	}

	if err := checkOutcome(payload, entries); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Outcome inconsistent: %v", err))
	} else {
		result.OutcomeConsistent = true
		result.ValidationDetails = append(result.ValidationDetails, "Outcome consistent with escrow")
	}

	return result, nil
}

func escrowEntries(lines []ledgerapi.EscrowLine) (map[core.Identity]core.EscrowEntry, error) {
	entries := make(map[core.Identity]core.EscrowEntry, len(lines))
	for _, line := range lines {
		bidder := core.Identity(line.Bidder)
		if err := bidder.Validate(); err != nil {
			return nil, err
		}
		if _, dup := entries[bidder]; dup {
			return nil, fmt.Errorf("duplicate escrow line for %s", bidder)
		}
		amount, err := core.ParseCoin(line.Amount)
		if err != nil {
			return nil, fmt.Errorf("escrow of %s: %w", bidder, err)
		}
		entries[bidder] = core.EscrowEntry{Amount: amount, Retracted: line.Retracted}
	}
	return entries, nil
}

func settlementHash(p *ledgerapi.SettlementPayload) (string, error) {
	var winner *core.Identity
	if p.Winner != "" {
		w := core.Identity(p.Winner)
		winner = &w
	}
	var payout *core.Coin
	if p.Payout != "" {
		c, err := core.ParseCoin(p.Payout)
		if err != nil {
			return "", fmt.Errorf("payout: %w", err)
		}
		payout = &c
	}
	return core.ComputeSettlementHash(p.Auction, core.Identity(p.Owner), winner, payout, p.Nonce), nil
}

func checkOutcome(p *ledgerapi.SettlementPayload, entries map[core.Identity]core.EscrowEntry) error {
	if p.Status != core.StatusClosed.String() {
		return fmt.Errorf("status is %q, expected %q", p.Status, core.StatusClosed)
	}

	if p.Winner == "" {
		if p.Payout != "" {
			return fmt.Errorf("payout %s without a winner", p.Payout)
		}
		if len(entries) != 0 {
			return fmt.Errorf("no winner but %d escrow entries", len(entries))
		}
		return nil
	}

	if p.Winner == p.Owner {
		return fmt.Errorf("owner %s cannot win", p.Owner)
	}
	if p.Payout == "" {
		return fmt.Errorf("winner %s without a payout", p.Winner)
	}
	payout, err := core.ParseCoin(p.Payout)
	if err != nil {
		return fmt.Errorf("payout: %w", err)
	}

	winning, ok := entries[core.Identity(p.Winner)]
	if !ok {
		return fmt.Errorf("winner %s has no escrow", p.Winner)
	}
	if winning.Retracted {
		return fmt.Errorf("winner %s escrow is retracted", p.Winner)
	}
	if !winning.Amount.Equal(payout) {
		return fmt.Errorf("payout %s differs from winning escrow %s", payout, winning.Amount)
	}

	for bidder, entry := range entries {
		if bidder == core.Identity(p.Winner) {
			continue
		}
		if entry.Amount.Denom != payout.Denom {
			return fmt.Errorf("escrow of %s is in %s, expected %s", bidder, entry.Amount.Denom, payout.Denom)
		}
		if entry.Amount.Amount.Cmp(payout.Amount) >= 0 {
			return fmt.Errorf("escrow of %s (%s) is not below the winning bid %s", bidder, entry.Amount, payout)
		}
	}
	return nil
}
