package entities

import (
	"strings"
	"time"
)

type LicenseStatus string

const (
	LicenseStatusDraft           LicenseStatus = "draft"
	LicenseStatusPendingApproval LicenseStatus = "pending_approval"
	LicenseStatusActive          LicenseStatus = "active"
	LicenseStatusExpired         LicenseStatus = "expired"
	LicenseStatusTerminated      LicenseStatus = "terminated"
	LicenseStatusSuspended       LicenseStatus = "suspended"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusDraft, LicenseStatusPendingApproval, LicenseStatusActive,
		LicenseStatusExpired, LicenseStatusTerminated, LicenseStatusSuspended:
		return true
	}
	return false
}

// Blocking statuses hold their territory for exclusivity checks.
func (s LicenseStatus) Blocking() bool {
	return s == LicenseStatusPendingApproval || s == LicenseStatusActive
}

const (
	TerritoryGlobal = "GLOBAL"
	MaxRevShareBps  = 10000
)

type Scope struct {
	Media       []string
	Placements  []string
	Territories []string
	Exclusive   bool
}

type License struct {
	LicenseID          string
	IPAssetID          string
	LicensorID         string
	LicenseeID         string
	Status             LicenseStatus
	Scope              Scope
	StartDate          time.Time
	EndDate            time.Time
	FeeCents           int64
	Currency           string
	RevShareBps        int
	ParentLicenseID    string
	Version            int
	SignedAt           *time.Time
	TerminatedAt       *time.Time
	TerminationReason  string
	ExpiryNoticeSentAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the commercial terms shared by new licenses and amendments.
func (l License) Validate() bool {
	if strings.TrimSpace(l.IPAssetID) == "" || strings.TrimSpace(l.LicensorID) == "" || strings.TrimSpace(l.LicenseeID) == "" {
		return false
	}
	if l.LicensorID == l.LicenseeID {
		return false
	}
	if l.StartDate.IsZero() || !l.EndDate.After(l.StartDate) {
		return false
	}
	if l.FeeCents < 0 || l.RevShareBps < 0 || l.RevShareBps > MaxRevShareBps {
		return false
	}
	if len(l.Scope.Territories) == 0 {
		return false
	}
	return validCurrency(l.Currency)
}

func (l License) IsParty(userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && (userID == l.LicensorID || userID == l.LicenseeID)
}

func (l License) Duration() time.Duration {
	return l.EndDate.Sub(l.StartDate)
}

// ConflictsWith reports whether two grants on the same asset cannot coexist:
// their date ranges overlap, they share a territory and at least one of them
// is exclusive.
func (l License) ConflictsWith(other License) bool {
	if l.IPAssetID != other.IPAssetID || (l.LicenseID != "" && l.LicenseID == other.LicenseID) {
		return false
	}
	if !l.Scope.Exclusive && !other.Scope.Exclusive {
		return false
	}
	if !l.StartDate.Before(other.EndDate) || !other.StartDate.Before(l.EndDate) {
		return false
	}
	return TerritoriesIntersect(l.Scope.Territories, other.Scope.Territories)
}

func TerritoriesIntersect(a []string, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, territory := range a {
		if territory == TerritoryGlobal {
			return true
		}
		set[territory] = struct{}{}
	}
	for _, territory := range b {
		if territory == TerritoryGlobal {
			return true
		}
		if _, ok := set[territory]; ok {
			return true
		}
	}
	return false
}

// NormalizeList upper- or lower-cases, trims and de-duplicates list values.
func NormalizeList(values []string, upper bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if upper {
			value = strings.ToUpper(value)
		} else {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

func validCurrency(currency string) bool {
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

// RenewedFee applies an adjustment in basis points, rounding toward zero.
func RenewedFee(fee int64, adjustmentBps int) int64 {
	adjusted := fee * int64(MaxRevShareBps+adjustmentBps) / MaxRevShareBps
	if adjusted < 0 {
		return 0
	}
	return adjusted
}
