package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxBodyLength  = 5000
	MaxAttachments = 10
	EditWindow     = 15 * time.Minute
	PreviewLength  = 140
)

type Message struct {
	MessageID     string
	ThreadID      string
	SenderID      string
	Body          string
	AttachmentIDs []string
	CreatedAt     time.Time
	EditedAt      *time.Time
	DeletedAt     *time.Time
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// EditableAt reports whether the edit window is still open at now.
func (m Message) EditableAt(now time.Time) bool {
	return !m.Deleted() && now.Sub(m.CreatedAt) <= EditWindow
}

func ValidBody(body string) bool {
	body = strings.TrimSpace(body)
	return body != "" && utf8.RuneCountInString(body) <= MaxBodyLength
}

// Preview trims body to PreviewLength runes for notifications.
func Preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= PreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:PreviewLength-1]) + "…"
}

func NormalizeAttachments(ids []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
