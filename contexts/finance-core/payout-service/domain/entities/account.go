package entities

import "time"

type AccountStatus string

const (
	AccountOnboarding AccountStatus = "onboarding"
	AccountActive     AccountStatus = "active"
	AccountRestricted AccountStatus = "restricted"
	AccountDisabled   AccountStatus = "disabled"
)

type ConnectedAccount struct {
	UserID           string
	StripeAccountID  string
	Status           AccountStatus
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	RequirementsDue  []string
	DisabledReason   string
	Country          string
	Email            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeriveStatus maps Stripe's capability flags onto our account lifecycle.
func DeriveStatus(account ConnectedAccount) AccountStatus {
	switch {
	case account.DisabledReason != "":
		return AccountDisabled
	case account.ChargesEnabled && account.PayoutsEnabled && account.DetailsSubmitted:
		return AccountActive
	case account.DetailsSubmitted && len(account.RequirementsDue) > 0:
		return AccountRestricted
	default:
		return AccountOnboarding
	}
}

func (a ConnectedAccount) CanReceivePayouts() bool {
	return a.Status == AccountActive && a.PayoutsEnabled
}
