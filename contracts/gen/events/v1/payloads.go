package v1

import "time"

// Event types relayed between bounded contexts. The outbox relay publishes
// every envelope on a topic named after its EventType.
const (
	EventIPAssetPublished        = "ip_asset.published"
	EventIPAssetOwnershipChanged = "ip_asset.ownership_changed"

	EventLicenseActivated  = "license.activated"
	EventLicenseAmended    = "license.amended"
	EventLicenseExpiring   = "license.expiring"
	EventLicenseExpired    = "license.expired"
	EventLicenseTerminated = "license.terminated"

	EventMediaUploaded = "media.uploaded"
	EventMediaReady    = "media.ready"
	EventMediaFailed   = "media.failed"

	EventMessageSent = "message.sent"

	EventRoyaltyStatementIssued = "royalty.statement_issued"

	EventPayoutCompleted = "payout.completed"
	EventPayoutFailed    = "payout.failed"

	EventQueueCritical = "job_monitor.queue_critical"
)

type OwnerShare struct {
	CreatorID string `json:"creator_id"`
	ShareBps  int    `json:"share_bps"`
}

type IPAssetOwnershipChangedData struct {
	AssetID   string       `json:"asset_id"`
	Owners    []OwnerShare `json:"owners"`
	Version   int          `json:"version"`
	ChangedAt time.Time    `json:"changed_at"`
}

type IPAssetPublishedData struct {
	AssetID   string `json:"asset_id"`
	CreatedBy string `json:"created_by"`
	Title     string `json:"title"`
}

type LicenseData struct {
	LicenseID   string    `json:"license_id"`
	IPAssetID   string    `json:"ip_asset_id"`
	LicensorID  string    `json:"licensor_id"`
	LicenseeID  string    `json:"licensee_id"`
	Status      string    `json:"status"`
	RevShareBps int       `json:"rev_share_bps"`
	FeeCents    int64     `json:"fee_cents"`
	Currency    string    `json:"currency"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Version     int       `json:"version"`
	Reason      string    `json:"reason,omitempty"`
}

type MediaData struct {
	MediaID       string `json:"media_id"`
	OwnerID       string `json:"owner_id"`
	Filename      string `json:"filename"`
	MediaType     string `json:"media_type"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type MessageSentData struct {
	ThreadID     string   `json:"thread_id"`
	MessageID    string   `json:"message_id"`
	SenderID     string   `json:"sender_id"`
	RecipientIDs []string `json:"recipient_ids"`
	Preview      string   `json:"preview"`
}

type RoyaltyStatementIssuedData struct {
	StatementID     string    `json:"statement_id"`
	RunID           string    `json:"run_id"`
	CreatorID       string    `json:"creator_id"`
	NetPayableCents int64     `json:"net_payable_cents"`
	Currency        string    `json:"currency"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

type PayoutData struct {
	PayoutID      string   `json:"payout_id"`
	UserID        string   `json:"user_id"`
	AmountCents   int64    `json:"amount_cents"`
	Currency      string   `json:"currency"`
	StatementIDs  []string `json:"statement_ids"`
	TransferID    string   `json:"transfer_id,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

type QueueCriticalData struct {
	Queue       string    `json:"queue"`
	Issues      []string  `json:"issues"`
	Waiting     int       `json:"waiting"`
	FailureRate float64   `json:"failure_rate"`
	DetectedAt  time.Time `json:"detected_at"`
}
