package entities

import "time"

type AmendmentStatus string

const (
	AmendmentProposed AmendmentStatus = "proposed"
	AmendmentApproved AmendmentStatus = "approved"
	AmendmentRejected AmendmentStatus = "rejected"
)

type AmendmentChanges struct {
	FeeCents    *int64     `json:"fee_cents,omitempty"`
	RevShareBps *int       `json:"rev_share_bps,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Territories []string   `json:"territories,omitempty"`
}

func (c AmendmentChanges) Empty() bool {
	return c.FeeCents == nil && c.RevShareBps == nil && c.EndDate == nil && len(c.Territories) == 0
}

// Apply returns the license with the proposed terms; callers re-validate.
func (c AmendmentChanges) Apply(license License) License {
	if c.FeeCents != nil {
		license.FeeCents = *c.FeeCents
	}
	if c.RevShareBps != nil {
		license.RevShareBps = *c.RevShareBps
	}
	if c.EndDate != nil {
		license.EndDate = c.EndDate.UTC()
	}
	if len(c.Territories) > 0 {
		license.Scope.Territories = NormalizeList(c.Territories, true)
	}
	return license
}

type Amendment struct {
	AmendmentID string
	LicenseID   string
	ProposedBy  string
	BaseVersion int
	Changes     AmendmentChanges
	Reason      string
	Status      AmendmentStatus
	DecidedBy   string
	DecidedAt   *time.Time
	CreatedAt   time.Time
}
