package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ScopeDTO struct {
	Media       []string `json:"media"`
	Placements  []string `json:"placements"`
	Territories []string `json:"territories"`
	Exclusive   bool     `json:"exclusive"`
}

type LicenseDTO struct {
	LicenseID          string   `json:"license_id"`
	IPAssetID          string   `json:"ip_asset_id"`
	LicensorID         string   `json:"licensor_id"`
	LicenseeID         string   `json:"licensee_id"`
	Status             string   `json:"status"`
	Scope              ScopeDTO `json:"scope"`
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date"`
	FeeCents           int64    `json:"fee_cents"`
	Currency           string   `json:"currency"`
	RevShareBps        int      `json:"rev_share_bps"`
	ParentLicenseID    string   `json:"parent_license_id,omitempty"`
	Version            int      `json:"version"`
	SignedAt           string   `json:"signed_at,omitempty"`
	TerminatedAt       string   `json:"terminated_at,omitempty"`
	TerminationReason  string   `json:"termination_reason,omitempty"`
	ExpiryNoticeSentAt string   `json:"expiry_notice_sent_at,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type CreateLicenseRequest struct {
	IPAssetID   string   `json:"ip_asset_id"`
	LicensorID  string   `json:"licensor_id"`
	LicenseeID  string   `json:"licensee_id"`
	Scope       ScopeDTO `json:"scope"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	FeeCents    int64    `json:"fee_cents"`
	Currency    string   `json:"currency"`
	RevShareBps int      `json:"rev_share_bps"`
}

type LicenseResponse struct {
	Status   string     `json:"status"`
	Data     LicenseDTO `json:"data"`
	Replayed bool       `json:"replayed,omitempty"`
}

type ListLicensesRequest struct {
	Status             string
	IPAssetID          string
	LicenseeID         string
	LicensorID         string
	ExpiringWithinDays int
	Cursor             string
	Limit              int
}

type ListLicensesResponse struct {
	Status     string       `json:"status"`
	Data       []LicenseDTO `json:"data"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type TransitionRequest struct {
	Reason string `json:"reason"`
}

type CheckConflictsRequest struct {
	IPAssetID   string   `json:"ip_asset_id"`
	Territories []string `json:"territories"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Exclusive   bool     `json:"exclusive"`
}

type CheckConflictsResponse struct {
	Status      string       `json:"status"`
	HasConflict bool         `json:"has_conflict"`
	Conflicts   []LicenseDTO `json:"conflicts"`
}

type AmendmentChangesDTO struct {
	FeeCents    *int64   `json:"fee_cents,omitempty"`
	RevShareBps *int     `json:"rev_share_bps,omitempty"`
	EndDate     *string  `json:"end_date,omitempty"`
	Territories []string `json:"territories,omitempty"`
}

type ProposeAmendmentRequest struct {
	Changes AmendmentChangesDTO `json:"changes"`
	Reason  string              `json:"reason"`
}

type AmendmentDTO struct {
	AmendmentID string              `json:"amendment_id"`
	LicenseID   string              `json:"license_id"`
	ProposedBy  string              `json:"proposed_by"`
	BaseVersion int                 `json:"base_version"`
	Changes     AmendmentChangesDTO `json:"changes"`
	Reason      string              `json:"reason,omitempty"`
	Status      string              `json:"status"`
	DecidedBy   string              `json:"decided_by,omitempty"`
	DecidedAt   string              `json:"decided_at,omitempty"`
	CreatedAt   string              `json:"created_at"`
}

type AmendmentResponse struct {
	Status string       `json:"status"`
	Data   AmendmentDTO `json:"data"`
}

type DecideAmendmentResponse struct {
	Status    string       `json:"status"`
	Amendment AmendmentDTO `json:"amendment"`
	License   LicenseDTO   `json:"license"`
}

type ListAmendmentsResponse struct {
	Status string         `json:"status"`
	Data   []AmendmentDTO `json:"data"`
}

type RenewLicenseRequest struct {
	FeeAdjustmentBps int `json:"fee_adjustment_bps"`
}
