package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type NotificationDTO struct {
	NotificationID string            `json:"notification_id"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	ActionURL      string            `json:"action_url,omitempty"`
	Priority       string            `json:"priority"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Read           bool              `json:"read"`
	ReadAt         string            `json:"read_at,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

type ListNotificationsRequest struct {
	Read     string
	Type     string
	Priority string
	Cursor   string
	Limit    int
}

type ListNotificationsResponse struct {
	Status     string            `json:"status"`
	Data       []NotificationDTO `json:"data"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type UnreadCountResponse struct {
	Status      string `json:"status"`
	UnreadCount int    `json:"unread_count"`
}

type PollResponse struct {
	Status           string            `json:"status"`
	Notifications    []NotificationDTO `json:"notifications"`
	UnreadCount      int               `json:"unread_count"`
	PollAfterSeconds int               `json:"poll_after_seconds"`
	ServerTime       string            `json:"server_time"`
}

type MarkAllReadResponse struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

type PreferencesDTO struct {
	EnabledTypes    map[string]bool `json:"enabled_types"`
	EmailEnabled    bool            `json:"email_enabled"`
	EmailAddress    string          `json:"email_address,omitempty"`
	DigestFrequency string          `json:"digest_frequency"`
}

type UpdatePreferencesRequest struct {
	EnabledTypes    map[string]bool `json:"enabled_types"`
	EmailEnabled    *bool           `json:"email_enabled"`
	EmailAddress    *string         `json:"email_address"`
	DigestFrequency *string         `json:"digest_frequency"`
}

type PreferencesResponse struct {
	Status string         `json:"status"`
	Data   PreferencesDTO `json:"data"`
}
