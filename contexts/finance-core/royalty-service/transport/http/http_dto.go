package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RecordRevenueRequest struct {
	EntryID    string `json:"entry_id"`
	LicenseID  string `json:"license_id"`
	IPAssetID  string `json:"ip_asset_id"`
	GrossCents int64  `json:"gross_cents"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
	Source     string `json:"source"`
}

type RevenueDTO struct {
	EntryID    string `json:"entry_id"`
	LicenseID  string `json:"license_id"`
	IPAssetID  string `json:"ip_asset_id,omitempty"`
	GrossCents int64  `json:"gross_cents"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
	Source     string `json:"source,omitempty"`
}

type RevenueResponse struct {
	Status  string     `json:"status"`
	Data    RevenueDTO `json:"data"`
	Created bool       `json:"created"`
}

type CreateRunRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type SkippedEntryDTO struct {
	EntryID   string `json:"entry_id"`
	LicenseID string `json:"license_id"`
	Reason    string `json:"reason"`
}

type RunDTO struct {
	RunID             string            `json:"run_id"`
	PeriodStart       string            `json:"period_start"`
	PeriodEnd         string            `json:"period_end"`
	Status            string            `json:"status"`
	TotalRevenueCents int64             `json:"total_revenue_cents"`
	TotalRoyaltyCents int64             `json:"total_royalty_cents"`
	TotalFeeCents     int64             `json:"total_fee_cents"`
	StatementCount    int               `json:"statement_count"`
	Skipped           []SkippedEntryDTO `json:"skipped,omitempty"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         string            `json:"created_at"`
	CalculatedAt      string            `json:"calculated_at,omitempty"`
	LockedAt          string            `json:"locked_at,omitempty"`
}

type RunResponse struct {
	Status   string `json:"status"`
	Data     RunDTO `json:"data"`
	Replayed bool   `json:"replayed,omitempty"`
}

type ListRunsRequest struct {
	Status string
	Cursor string
	Limit  int
}

type ListRunsResponse struct {
	Status     string   `json:"status"`
	Data       []RunDTO `json:"data"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type LineDTO struct {
	LicenseID    string `json:"license_id"`
	IPAssetID    string `json:"ip_asset_id"`
	EntryID      string `json:"entry_id"`
	RevenueCents int64  `json:"revenue_cents"`
	RevShareBps  int    `json:"rev_share_bps"`
	OwnershipBps int    `json:"ownership_bps"`
	RoyaltyCents int64  `json:"royalty_cents"`
}

type StatementDTO struct {
	StatementID     string    `json:"statement_id"`
	RunID           string    `json:"run_id"`
	CreatorID       string    `json:"creator_id"`
	Currency        string    `json:"currency"`
	PeriodStart     string    `json:"period_start"`
	PeriodEnd       string    `json:"period_end"`
	EarningsCents   int64     `json:"earnings_cents"`
	FeeCents        int64     `json:"fee_cents"`
	AdjustmentCents int64     `json:"adjustment_cents"`
	NetPayableCents int64     `json:"net_payable_cents"`
	Status          string    `json:"status"`
	Lines           []LineDTO `json:"lines,omitempty"`
	DisputeReason   string    `json:"dispute_reason,omitempty"`
	ResolutionNote  string    `json:"resolution_note,omitempty"`
	PayoutID        string    `json:"payout_id,omitempty"`
	IssuedAt        string    `json:"issued_at,omitempty"`
	PaidAt          string    `json:"paid_at,omitempty"`
}

type StatementResponse struct {
	Status string       `json:"status"`
	Data   StatementDTO `json:"data"`
}

type ListStatementsRequest struct {
	CreatorID string
	RunID     string
	Status    string
	Cursor    string
	Limit     int
}

type ListStatementsResponse struct {
	Status     string         `json:"status"`
	Data       []StatementDTO `json:"data"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type DisputeStatementRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	AdjustmentCents int64  `json:"adjustment_cents"`
	Note            string `json:"note"`
}

type CurrencyTotalsDTO struct {
	Currency         string           `json:"currency"`
	EarningsCents    int64            `json:"earnings_cents"`
	FeeCents         int64            `json:"fee_cents"`
	AdjustmentCents  int64            `json:"adjustment_cents"`
	NetPayableCents  int64            `json:"net_payable_cents"`
	OutstandingCents int64            `json:"outstanding_cents"`
	PaidCents        int64            `json:"paid_cents"`
	ByStatus         map[string]int64 `json:"by_status"`
}

type EarningsSummaryResponse struct {
	Status string `json:"status"`
	Data   struct {
		CreatorID      string              `json:"creator_id"`
		StatementCount int                 `json:"statement_count"`
		Currencies     []CurrencyTotalsDTO `json:"currencies"`
	} `json:"data"`
}

type FeeBreakdownResponse struct {
	Status string `json:"status"`
	Data   struct {
		GrossCents int64 `json:"gross_cents"`
		FeeBps     int   `json:"fee_bps"`
		FeeCents   int64 `json:"fee_cents"`
		NetCents   int64 `json:"net_cents"`
	} `json:"data"`
}
