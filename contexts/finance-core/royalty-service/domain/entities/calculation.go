package entities

import (
	"sort"
	"time"
)

// ApplyBps returns floor(amount * bps / 10000) for non-negative amounts.
func ApplyBps(amountCents int64, bps int) int64 {
	if amountCents <= 0 || bps <= 0 {
		return 0
	}
	return amountCents * int64(bps) / MaxBps
}

type FeeBreakdown struct {
	GrossCents int64
	FeeBps     int
	FeeCents   int64
	NetCents   int64
}

func BreakdownFee(amountCents int64, feeBps int) FeeBreakdown {
	fee := ApplyBps(amountCents, feeBps)
	return FeeBreakdown{
		GrossCents: amountCents,
		FeeBps:     feeBps,
		FeeCents:   fee,
		NetCents:   amountCents - fee,
	}
}

// SplitLargestRemainder divides amount across owners in proportion to their
// ShareBps. Floors are handed out first and the leftover cents go to the
// largest remainders, ties broken by creator id, so the parts always sum to
// amount.
func SplitLargestRemainder(amountCents int64, owners []OwnerShare) map[string]int64 {
	out := make(map[string]int64, len(owners))
	total := int64(0)
	for _, owner := range owners {
		if owner.ShareBps > 0 {
			total += int64(owner.ShareBps)
		}
	}
	if amountCents <= 0 || total == 0 {
		return out
	}

	type part struct {
		creatorID string
		remainder int64
	}
	parts := make([]part, 0, len(owners))
	allocated := int64(0)
	for _, owner := range owners {
		if owner.ShareBps <= 0 {
			continue
		}
		product := amountCents * int64(owner.ShareBps)
		floor := product / total
		out[owner.CreatorID] += floor
		allocated += floor
		parts = append(parts, part{creatorID: owner.CreatorID, remainder: product % total})
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].remainder == parts[j].remainder {
			return parts[i].creatorID < parts[j].creatorID
		}
		return parts[i].remainder > parts[j].remainder
	})
	for i := 0; allocated < amountCents; i++ {
		out[parts[i%len(parts)].creatorID]++
		allocated++
	}
	return out
}

type CalculationInput struct {
	RunID       string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Entries     []RevenueEntry
	Terms       map[string]LicenseTerms
	Ownership   map[string]Ownership
	FeeBps      int
}

type CalculationResult struct {
	Statements        []Statement
	Skipped           []SkippedEntry
	TotalRevenueCents int64
	TotalRoyaltyCents int64
	TotalFeeCents     int64
}

// Calculate attributes every in-period entry to asset owners and folds the
// results into one statement per creator and currency. Statement ids, status
// and timestamps are left for the caller. Output order is deterministic.
func Calculate(input CalculationInput) CalculationResult {
	entries := make([]RevenueEntry, 0, len(input.Entries))
	for _, entry := range input.Entries {
		if entry.InPeriod(input.PeriodStart, input.PeriodEnd) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].EntryID < entries[j].EntryID
		}
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})

	type key struct{ creatorID, currency string }
	byCreator := map[key]*Statement{}
	var result CalculationResult
	for _, entry := range entries {
		result.TotalRevenueCents += entry.GrossCents
		terms, ok := input.Terms[entry.LicenseID]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.EntryID, LicenseID: entry.LicenseID, Reason: SkipMissingTerms})
			continue
		}
		assetID := terms.IPAssetID
		if assetID == "" {
			assetID = entry.IPAssetID
		}
		ownership, ok := input.Ownership[assetID]
		if !ok || ownership.TotalBps() <= 0 {
			result.Skipped = append(result.Skipped, SkippedEntry{EntryID: entry.EntryID, LicenseID: entry.LicenseID, Reason: SkipMissingOwnership})
			continue
		}
		share := ApplyBps(entry.GrossCents, terms.RevShareBps)
		split := SplitLargestRemainder(share, ownership.Owners)
		for _, owner := range ownership.Owners {
			amount, ok := split[owner.CreatorID]
			if !ok {
				continue
			}
			k := key{creatorID: owner.CreatorID, currency: entry.Currency}
			statement, exists := byCreator[k]
			if !exists {
				statement = &Statement{
					RunID:       input.RunID,
					CreatorID:   owner.CreatorID,
					Currency:    entry.Currency,
					PeriodStart: input.PeriodStart,
					PeriodEnd:   input.PeriodEnd,
				}
				byCreator[k] = statement
			}
			statement.EarningsCents += amount
			statement.Lines = append(statement.Lines, Line{
				LicenseID:    entry.LicenseID,
				IPAssetID:    assetID,
				EntryID:      entry.EntryID,
				RevenueCents: entry.GrossCents,
				RevShareBps:  terms.RevShareBps,
				OwnershipBps: owner.ShareBps,
				RoyaltyCents: amount,
			})
			// A creator listed twice gets one line with the merged amount.
			delete(split, owner.CreatorID)
		}
		result.TotalRoyaltyCents += share
	}

	keys := make([]key, 0, len(byCreator))
	for k := range byCreator {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].creatorID == keys[j].creatorID {
			return keys[i].currency < keys[j].currency
		}
		return keys[i].creatorID < keys[j].creatorID
	})
	for _, k := range keys {
		statement := byCreator[k]
		statement.FeeCents = ApplyBps(statement.EarningsCents, input.FeeBps)
		statement.NetPayableCents = statement.EarningsCents - statement.FeeCents
		result.TotalFeeCents += statement.FeeCents
		result.Statements = append(result.Statements, *statement)
	}
	return result
}
