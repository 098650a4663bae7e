package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MediaDTO struct {
	MediaID       string   `json:"media_id"`
	OwnerID       string   `json:"owner_id"`
	Filename      string   `json:"filename"`
	Title         string   `json:"title"`
	MimeType      string   `json:"mime_type"`
	Type          string   `json:"type"`
	SizeBytes     int64    `json:"size_bytes"`
	Status        string   `json:"status"`
	Checksum      string   `json:"checksum,omitempty"`
	AltText       string   `json:"alt_text,omitempty"`
	Tags          []string `json:"tags"`
	FailureReason string   `json:"failure_reason,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

type InitiateUploadRequest struct {
	Filename  string   `json:"filename"`
	Title     string   `json:"title"`
	MimeType  string   `json:"mime_type"`
	SizeBytes int64    `json:"size_bytes"`
	Tags      []string `json:"tags"`
}

type InitiateUploadResponse struct {
	Status    string   `json:"status"`
	Data      MediaDTO `json:"data"`
	UploadURL string   `json:"upload_url"`
	ExpiresAt string   `json:"expires_at"`
	Replayed  bool     `json:"replayed"`
}

type ConfirmUploadRequest struct {
	Checksum string `json:"checksum"`
}

type UpdateMetadataRequest struct {
	Title   *string   `json:"title"`
	AltText *string   `json:"alt_text"`
	Tags    *[]string `json:"tags"`
}

type MediaResponse struct {
	Status string   `json:"status"`
	Data   MediaDTO `json:"data"`
}

type ListMediaRequest struct {
	OwnerID string
	Type    string
	Status  string
	Tag     string
	Search  string
	Cursor  string
	Limit   int
}

type ListMediaResponse struct {
	Status     string     `json:"status"`
	Data       []MediaDTO `json:"data"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type BulkDeleteRequest struct {
	MediaIDs []string `json:"media_ids"`
}

type BulkDeleteItemDTO struct {
	MediaID string `json:"media_id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type BulkDeleteResponse struct {
	Status  string              `json:"status"`
	Deleted int                 `json:"deleted"`
	Results []BulkDeleteItemDTO `json:"results"`
}

type DownloadURLResponse struct {
	Status    string `json:"status"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
