package entities

import (
	"net/mail"
	"strings"
	"time"
)

type DigestFrequency string

const (
	DigestImmediate DigestFrequency = "immediate"
	DigestDaily     DigestFrequency = "daily"
	DigestWeekly    DigestFrequency = "weekly"
	DigestNever     DigestFrequency = "never"
)

func (d DigestFrequency) Valid() bool {
	switch d {
	case DigestImmediate, DigestDaily, DigestWeekly, DigestNever:
		return true
	default:
		return false
	}
}

type Preferences struct {
	UserID          string
	EnabledTypes    map[NotificationType]bool
	EmailEnabled    bool
	EmailAddress    string
	DigestFrequency DigestFrequency
	UpdatedAt       time.Time
}

// DefaultPreferences enables every type and immediate email.
func DefaultPreferences(userID string) Preferences {
	enabled := make(map[NotificationType]bool, len(AllTypes))
	for _, t := range AllTypes {
		enabled[t] = true
	}
	return Preferences{
		UserID:          userID,
		EnabledTypes:    enabled,
		EmailEnabled:    true,
		DigestFrequency: DigestImmediate,
	}
}

// TypeEnabled treats types missing from the map as enabled.
func (p Preferences) TypeEnabled(t NotificationType) bool {
	enabled, ok := p.EnabledTypes[t]
	return !ok || enabled
}

func (p Preferences) EmailsImmediately() bool {
	return p.EmailEnabled && p.DigestFrequency == DigestImmediate
}

func ValidEmailAddress(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return true
	}
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}
