package httptransport

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ThreadDTO struct {
	ThreadID       string   `json:"thread_id"`
	Subject        string   `json:"subject"`
	ParticipantIDs []string `json:"participant_ids"`
	CreatedBy      string   `json:"created_by"`
	LastMessageAt  string   `json:"last_message_at"`
	CreatedAt      string   `json:"created_at"`
	UnreadCount    int      `json:"unread_count"`
	Archived       bool     `json:"archived"`
}

type MessageDTO struct {
	MessageID     string   `json:"message_id"`
	ThreadID      string   `json:"thread_id"`
	SenderID      string   `json:"sender_id"`
	Body          string   `json:"body"`
	AttachmentIDs []string `json:"attachment_ids"`
	CreatedAt     string   `json:"created_at"`
	EditedAt      string   `json:"edited_at,omitempty"`
	Deleted       bool     `json:"deleted"`
}

type CreateThreadRequest struct {
	Subject        string   `json:"subject"`
	ParticipantIDs []string `json:"participant_ids"`
	Message        string   `json:"message"`
	AttachmentIDs  []string `json:"attachment_ids"`
}

type CreateThreadResponse struct {
	Status   string      `json:"status"`
	Data     ThreadDTO   `json:"data"`
	Message  *MessageDTO `json:"message,omitempty"`
	Replayed bool        `json:"replayed"`
}

type ThreadResponse struct {
	Status string    `json:"status"`
	Data   ThreadDTO `json:"data"`
}

type ListThreadsRequest struct {
	IncludeArchived bool
	Cursor          string
	Limit           int
}

type ListThreadsResponse struct {
	Status     string      `json:"status"`
	Data       []ThreadDTO `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type SendMessageRequest struct {
	Body          string   `json:"body"`
	AttachmentIDs []string `json:"attachment_ids"`
}

type MessageResponse struct {
	Status   string     `json:"status"`
	Data     MessageDTO `json:"data"`
	Replayed bool       `json:"replayed,omitempty"`
}

type ListMessagesRequest struct {
	Before string
	Limit  int
}

type ListMessagesResponse struct {
	Status     string       `json:"status"`
	Data       []MessageDTO `json:"data"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type EditMessageRequest struct {
	Body string `json:"body"`
}

type UnreadCountResponse struct {
	Status      string `json:"status"`
	UnreadCount int    `json:"unread_count"`
}

type SearchMessagesResponse struct {
	Status string       `json:"status"`
	Data   []MessageDTO `json:"data"`
}
