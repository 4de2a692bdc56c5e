package core

import "fmt"

// SpreadMeetsMinimum reports whether one round's contribution is large
// enough to be accepted. A round must be non-zero and at least both the tick
// and the commission, so every escrow entry can always pay its commission.
// The rule applies to every round including a bidder's first.
func SpreadMeetsMinimum(spread, tick, commission Amount) bool {
	if spread.IsZero() {
		return false
	}
	return spread.Cmp(tick) >= 0 && spread.Cmp(commission) >= 0
}

func checkSpread(spread Coin, rec *AuctionRecord) error {
	if !SpreadMeetsMinimum(spread.Amount, rec.Tick.Amount, rec.Commission.Amount) {
		return newError(CodeInvalidBid, fmt.Sprintf("spread %s is below tick %s or commission %s",
			spread, rec.Tick, rec.Commission))
	}
	return nil
}

// exceedsHighest reports whether candidate strictly beats the current
// leader. Equal amounts never take the lead.
func exceedsHighest(candidate Coin, highest *HighestBid) bool {
	if highest == nil {
		return !candidate.IsZero()
	}
	return candidate.Amount.Cmp(highest.Amount.Amount) > 0
}
