package entities

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutFailed     PayoutStatus = "failed"
)

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutProcessing, PayoutPaid, PayoutFailed:
		return true
	default:
		return false
	}
}

const MaxPayoutAttempts = 5

type Payout struct {
	PayoutID         string
	UserID           string
	StripeAccountID  string
	AmountCents      int64
	Currency         string
	Status           PayoutStatus
	StripeTransferID string
	StatementIDs     []string
	Attempts         int
	NextAttemptAt    time.Time
	FailureReason    string
	RequestedAt      time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// BeginAttempt claims the payout for one transfer attempt. A processing
// payout whose lease ran out is claimable again; transfers are keyed by
// payout id so a repeated attempt cannot double pay.
func (p *Payout) BeginAttempt(now time.Time, lease time.Duration) bool {
	if p.Status != PayoutPending && p.Status != PayoutProcessing {
		return false
	}
	if p.NextAttemptAt.After(now) {
		return false
	}
	p.Status = PayoutProcessing
	p.Attempts++
	p.NextAttemptAt = now.Add(lease)
	p.UpdatedAt = now
	return true
}

func (p *Payout) Complete(transferID string, now time.Time) {
	p.Status = PayoutPaid
	p.StripeTransferID = transferID
	p.FailureReason = ""
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// RecordFailure reschedules the payout after delay, or fails it for good
// once MaxPayoutAttempts is used up. It reports whether the failure is final.
func (p *Payout) RecordFailure(reason string, now time.Time, delay time.Duration) bool {
	p.FailureReason = reason
	p.UpdatedAt = now
	if p.Attempts >= MaxPayoutAttempts {
		p.Status = PayoutFailed
		p.CompletedAt = &now
		return true
	}
	p.Status = PayoutPending
	p.NextAttemptAt = now.Add(delay)
	return false
}

// Reverse fails a paid payout after the transfer was pulled back.
func (p *Payout) Reverse(reason string, now time.Time) bool {
	if p.Status != PayoutPaid {
		return false
	}
	p.Status = PayoutFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	return true
}
