package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

type NotificationType string

const (
	TypeLicense NotificationType = "license"
	TypePayout  NotificationType = "payout"
	TypeRoyalty NotificationType = "royalty"
	TypeMessage NotificationType = "message"
	TypeMedia   NotificationType = "media"
	TypeSystem  NotificationType = "system"
)

var AllTypes = []NotificationType{TypeLicense, TypePayout, TypeRoyalty, TypeMessage, TypeMedia, TypeSystem}

func (t NotificationType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Immediate priorities are mailed right away when the user allows email.
func (p Priority) Immediate() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

const (
	MaxTitleLength   = 200
	MaxMessageLength = 2000
)

type Notification struct {
	NotificationID string
	UserID         string
	Type           NotificationType
	Title          string
	Message        string
	ActionURL      string
	Priority       Priority
	DedupeKey      string
	Metadata       map[string]string
	ReadAt         *time.Time
	CreatedAt      time.Time
}

func (n Notification) Read() bool {
	return n.ReadAt != nil
}

func (n Notification) Validate() bool {
	title := strings.TrimSpace(n.Title)
	message := strings.TrimSpace(n.Message)
	return strings.TrimSpace(n.UserID) != "" &&
		n.Type.Valid() &&
		n.Priority.Valid() &&
		title != "" && utf8.RuneCountInString(title) <= MaxTitleLength &&
		message != "" && utf8.RuneCountInString(message) <= MaxMessageLength
}

const (
	PollFastSeconds   = 10
	PollNormalSeconds = 30
	PollIdleSeconds   = 60
)

// PollAfterSeconds tells clients when to poll next.
func PollAfterSeconds(urgentUnread int, newItems int) int {
	switch {
	case urgentUnread > 0:
		return PollFastSeconds
	case newItems > 0:
		return PollNormalSeconds
	default:
		return PollIdleSeconds
	}
}
