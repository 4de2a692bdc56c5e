package core

import "sort"

// RankEscrow orders outstanding escrow entries by cumulative amount,
// highest first. Retracted entries are skipped. Equal amounts are ordered by
// bidder identity; the leader can never tie because a bid must strictly
// exceed the current highest to take the lead.
func RankEscrow(entries map[Identity]EscrowEntry) []Standing {
	standings := make([]Standing, 0, len(entries))
	for bidder, entry := range entries {
		if entry.Retracted {
			continue
		}
		standings = append(standings, Standing{Bidder: bidder, Amount: entry.Amount})
	}

	sort.Slice(standings, func(i, j int) bool {
		if c := standings[i].Amount.Amount.Cmp(standings[j].Amount.Amount); c != 0 {
			return c > 0
		}
		return standings[i].Bidder < standings[j].Bidder
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
