package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OwnershipDTO struct {
	CreatorID string `json:"creator_id"`
	ShareBps  int    `json:"share_bps"`
	Type      string `json:"type"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type AssetDTO struct {
	AssetID     string         `json:"asset_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	CreatedBy   string         `json:"created_by"`
	MediaID     string         `json:"media_id,omitempty"`
	Tags        []string       `json:"tags"`
	Owners      []OwnershipDTO `json:"owners"`
	Version     int            `json:"version"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type CreateAssetRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	MediaID     string   `json:"media_id"`
	Tags        []string `json:"tags"`
}

type CreateAssetResponse struct {
	Status   string   `json:"status"`
	Data     AssetDTO `json:"data"`
	Replayed bool     `json:"replayed"`
}

type UpdateAssetRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	MediaID     *string   `json:"media_id"`
	Tags        *[]string `json:"tags"`
}

type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type SetOwnershipRequest struct {
	Owners []OwnershipDTO `json:"owners"`
}

type AssetResponse struct {
	Status string   `json:"status"`
	Data   AssetDTO `json:"data"`
}

type ListAssetsRequest struct {
	Status    string
	Type      string
	CreatorID string
	Search    string
	Cursor    string
	Limit     int
}

type ListAssetsResponse struct {
	Status     string     `json:"status"`
	Data       []AssetDTO `json:"data"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
