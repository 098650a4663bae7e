package entities

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxSubjectLength = 200
	MinParticipants  = 2
	MaxParticipants  = 10
)

type Thread struct {
	ThreadID       string
	Subject        string
	ParticipantIDs []string
	CreatedBy      string
	LastMessageAt  time.Time
	CreatedAt      time.Time
}

func (t Thread) HasParticipant(userID string) bool {
	for _, participant := range t.ParticipantIDs {
		if participant == userID {
			return true
		}
	}
	return false
}

// Recipients is everyone in the thread except senderID.
func (t Thread) Recipients(senderID string) []string {
	out := make([]string, 0, len(t.ParticipantIDs))
	for _, participant := range t.ParticipantIDs {
		if participant != senderID {
			out = append(out, participant)
		}
	}
	return out
}

// NormalizeParticipants puts the creator first and drops blanks and duplicates.
func NormalizeParticipants(creatorID string, participantIDs []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(participantIDs)+1)
	for _, id := range append([]string{creatorID}, participantIDs...) {
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

func ValidSubject(subject string) bool {
	subject = strings.TrimSpace(subject)
	return subject != "" && utf8.RuneCountInString(subject) <= MaxSubjectLength
}

// ThreadState is one participant's view of a thread.
type ThreadState struct {
	UserID     string
	ThreadID   string
	LastReadAt time.Time
	Archived   bool
}
