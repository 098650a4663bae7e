package entities

import "time"

type LedgerStatus string

const (
	LedgerAvailable LedgerStatus = "available"
	LedgerReserved  LedgerStatus = "reserved"
	LedgerPaid      LedgerStatus = "paid"
)

// LedgerEntry credits one issued royalty statement to its creator.
type LedgerEntry struct {
	EntryID     string
	UserID      string
	StatementID string
	AmountCents int64
	Currency    string
	Status      LedgerStatus
	PayoutID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e *LedgerEntry) Reserve(payoutID string, now time.Time) {
	e.Status = LedgerReserved
	e.PayoutID = payoutID
	e.UpdatedAt = now
}

func (e *LedgerEntry) Release(now time.Time) {
	e.Status = LedgerAvailable
	e.PayoutID = ""
	e.UpdatedAt = now
}

func (e *LedgerEntry) Settle(now time.Time) {
	e.Status = LedgerPaid
	e.UpdatedAt = now
}

type Balance struct {
	Currency       string
	AvailableCents int64
	ReservedCents  int64
	PaidCents      int64
}

// Balances totals entries per currency, ordered by first appearance.
func Balances(entries []LedgerEntry) []Balance {
	index := map[string]int{}
	out := make([]Balance, 0)
	for _, entry := range entries {
		i, ok := index[entry.Currency]
		if !ok {
			i = len(out)
			index[entry.Currency] = i
			out = append(out, Balance{Currency: entry.Currency})
		}
		switch entry.Status {
		case LedgerAvailable:
			out[i].AvailableCents += entry.AmountCents
		case LedgerReserved:
			out[i].ReservedCents += entry.AmountCents
		case LedgerPaid:
			out[i].PaidCents += entry.AmountCents
		}
	}
	return out
}
