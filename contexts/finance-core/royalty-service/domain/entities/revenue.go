package entities

import (
	"strings"
	"time"
)

type RevenueEntry struct {
	EntryID    string
	LicenseID  string
	IPAssetID  string
	GrossCents int64
	Currency   string
	OccurredAt time.Time
	Source     string
	CreatedAt  time.Time
}

func (e RevenueEntry) Valid() bool {
	return strings.TrimSpace(e.EntryID) != "" &&
		strings.TrimSpace(e.LicenseID) != "" &&
		e.GrossCents > 0 &&
		ValidCurrency(e.Currency) &&
		!e.OccurredAt.IsZero()
}

// SameAs reports whether two entries carry the same payload, ignoring
// bookkeeping fields set on insert.
func (e RevenueEntry) SameAs(other RevenueEntry) bool {
	return e.EntryID == other.EntryID &&
		e.LicenseID == other.LicenseID &&
		e.GrossCents == other.GrossCents &&
		e.Currency == other.Currency &&
		e.OccurredAt.Equal(other.OccurredAt) &&
		e.Source == other.Source
}

// InPeriod is start-inclusive and end-exclusive.
func (e RevenueEntry) InPeriod(start time.Time, end time.Time) bool {
	return !e.OccurredAt.Before(start) && e.OccurredAt.Before(end)
}

func ValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
