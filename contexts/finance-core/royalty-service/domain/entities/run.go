package entities

import "time"

type RunStatus string

const (
	RunDraft      RunStatus = "draft"
	RunCalculated RunStatus = "calculated"
	RunLocked     RunStatus = "locked"
)

type SkipReason string

const (
	SkipMissingTerms     SkipReason = "missing_license_terms"
	SkipMissingOwnership SkipReason = "missing_ownership"
)

// SkippedEntry is revenue in the period that could not be attributed.
type SkippedEntry struct {
	EntryID   string
	LicenseID string
	Reason    SkipReason
}

type RoyaltyRun struct {
	RunID             string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Status            RunStatus
	TotalRevenueCents int64
	TotalRoyaltyCents int64
	TotalFeeCents     int64
	StatementCount    int
	Skipped           []SkippedEntry
	CreatedBy         string
	CreatedAt         time.Time
	CalculatedAt      *time.Time
	LockedAt          *time.Time
}

func (r RoyaltyRun) CanCalculate() bool {
	return r.Status == RunDraft || r.Status == RunCalculated
}

func (r RoyaltyRun) CanLock() bool {
	return r.Status == RunCalculated
}

// Overlaps treats both periods as half-open intervals.
func (r RoyaltyRun) Overlaps(start time.Time, end time.Time) bool {
	return r.PeriodStart.Before(end) && start.Before(r.PeriodEnd)
}
