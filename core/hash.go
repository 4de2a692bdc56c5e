package core

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeEscrowDigest commits to the full escrow ledger.
// This is used by the daemon (to embed in settlement receipts) and validation
// (to recompute from a ledger export).
//
// Formula: SHA256(nonce + "|" + sorted_entries)
// where sorted_entries = "bidder1:amount1:r1|bidder2:amount2:r2|..." sorted by
// bidder and r is 1 for retracted entries, 0 otherwise.
func ComputeEscrowDigest(entries map[Identity]EscrowEntry, nonce string) string {
	data := nonce

	bidders := make([]string, 0, len(entries))
	for bidder := range entries {
		bidders = append(bidders, string(bidder))
	}
	sort.Strings(bidders)

	for _, bidder := range bidders {
		entry := entries[Identity(bidder)]
		retracted := 0
		if entry.Retracted {
			retracted = 1
		}
		data += fmt.Sprintf("|%s:%s:%d", bidder, entry.Amount, retracted)
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeSettlementHash commits to the outcome of a close.
//
// Formula: SHA256(name + "|" + owner + "|" + winner + "|" + payout + "|" + nonce)
// with winner and payout empty when the auction closed without bids.
func ComputeSettlementHash(name string, owner Identity, winner *Identity, payout *Coin, nonce string) string {
	winnerStr, payoutStr := "", ""
	if winner != nil {
		winnerStr = string(*winner)
	}
	if payout != nil {
		payoutStr = payout.String()
	}
	data := fmt.Sprintf("%s|%s|%s|%s|%s", name, owner, winnerStr, payoutStr, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
