package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StartOnboardingRequest struct {
	Email string `json:"email"`
}

type AccountDTO struct {
	UserID           string   `json:"user_id"`
	StripeAccountID  string   `json:"stripe_account_id"`
	Status           string   `json:"status"`
	ChargesEnabled   bool     `json:"charges_enabled"`
	PayoutsEnabled   bool     `json:"payouts_enabled"`
	DetailsSubmitted bool     `json:"details_submitted"`
	RequirementsDue  []string `json:"requirements_due"`
	DisabledReason   string   `json:"disabled_reason,omitempty"`
	Country          string   `json:"country,omitempty"`
	Email            string   `json:"email,omitempty"`
	UpdatedAt        string   `json:"updated_at"`
}

type AccountResponse struct {
	Status string     `json:"status"`
	Data   AccountDTO `json:"data"`
}

type OnboardingDTO struct {
	Account   AccountDTO `json:"account"`
	URL       string     `json:"url"`
	ExpiresAt string     `json:"expires_at"`
}

type OnboardingResponse struct {
	Status string        `json:"status"`
	Data   OnboardingDTO `json:"data"`
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type BalanceDTO struct {
	Currency       string `json:"currency"`
	AvailableCents int64  `json:"available_cents"`
	ReservedCents  int64  `json:"reserved_cents"`
	PaidCents      int64  `json:"paid_cents"`
}

type BalanceResponse struct {
	Status         string       `json:"status"`
	UserID         string       `json:"user_id"`
	MinPayoutCents int64        `json:"min_payout_cents"`
	Data           []BalanceDTO `json:"data"`
}

type RequestPayoutRequest struct {
	StatementIDs []string `json:"statement_ids"`
	Currency     string   `json:"currency"`
}

type PayoutDTO struct {
	PayoutID         string   `json:"payout_id"`
	UserID           string   `json:"user_id"`
	AmountCents      int64    `json:"amount_cents"`
	Currency         string   `json:"currency"`
	Status           string   `json:"status"`
	StripeTransferID string   `json:"stripe_transfer_id,omitempty"`
	StatementIDs     []string `json:"statement_ids"`
	Attempts         int      `json:"attempts"`
	NextAttemptAt    string   `json:"next_attempt_at,omitempty"`
	FailureReason    string   `json:"failure_reason,omitempty"`
	RequestedAt      string   `json:"requested_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
}

type PayoutResponse struct {
	Status   string    `json:"status"`
	Data     PayoutDTO `json:"data"`
	Replayed bool      `json:"replayed,omitempty"`
}

type ListPayoutsRequest struct {
	UserID string
	Status string
	Cursor string
	Limit  int
}

type ListPayoutsResponse struct {
	Status     string      `json:"status"`
	Data       []PayoutDTO `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
