package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

type StatementStatus string

const (
	StatementPending  StatementStatus = "pending"
	StatementReviewed StatementStatus = "reviewed"
	StatementDisputed StatementStatus = "disputed"
	StatementResolved StatementStatus = "resolved"
	StatementPaid     StatementStatus = "paid"
)

func (s StatementStatus) Valid() bool {
	switch s {
	case StatementPending, StatementReviewed, StatementDisputed, StatementResolved, StatementPaid:
		return true
	default:
		return false
	}
}

const MaxReasonLength = 1000

type Line struct {
	LicenseID    string
	IPAssetID    string
	EntryID      string
	RevenueCents int64
	RevShareBps  int
	OwnershipBps int
	RoyaltyCents int64
}

type Statement struct {
	StatementID     string
	RunID           string
	CreatorID       string
	Currency        string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	EarningsCents   int64
	FeeCents        int64
	AdjustmentCents int64
	NetPayableCents int64
	Status          StatementStatus
	Lines           []Line
	DisputeReason   string
	ResolutionNote  string
	PayoutID        string
	IssuedAt        *time.Time
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s Statement) Issued() bool {
	return s.IssuedAt != nil
}

func (s *Statement) Review(now time.Time) bool {
	if s.Status != StatementPending {
		return false
	}
	s.Status = StatementReviewed
	s.UpdatedAt = now
	return true
}

func (s *Statement) Dispute(reason string, now time.Time) bool {
	if s.Status != StatementPending && s.Status != StatementReviewed {
		return false
	}
	s.Status = StatementDisputed
	s.DisputeReason = reason
	s.UpdatedAt = now
	return true
}

// Resolve applies an adjustment and recomputes net. It returns false when
// net would go negative; the statement is left untouched in that case.
func (s *Statement) Resolve(adjustmentCents int64, note string, now time.Time) bool {
	net := s.EarningsCents - s.FeeCents + adjustmentCents
	if net < 0 {
		return false
	}
	s.AdjustmentCents = adjustmentCents
	s.NetPayableCents = net
	s.ResolutionNote = note
	s.Status = StatementResolved
	s.UpdatedAt = now
	return true
}

func (s *Statement) MarkPaid(payoutID string, at time.Time) bool {
	if s.Status == StatementPaid {
		return false
	}
	s.Status = StatementPaid
	s.PayoutID = payoutID
	s.PaidAt = &at
	s.UpdatedAt = at
	return true
}

func ValidReason(reason string) bool {
	reason = strings.TrimSpace(reason)
	return reason != "" && utf8.RuneCountInString(reason) <= MaxReasonLength
}
