package pagination

import (
	"encoding/base64"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// DecodeCursor turns an opaque cursor back into an offset. Malformed cursors
// restart from the first page.
func DecodeCursor(cursor string) int {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// Page slices an already ordered result set.
func Page[T any](items []T, cursor string, limit int) ([]T, string) {
	limit = NormalizeLimit(limit)
	offset := DecodeCursor(cursor)
	if offset >= len(items) {
		return []T{}, ""
	}
	end := offset + limit
	next := ""
	if end < len(items) {
		next = EncodeCursor(end)
	} else {
		end = len(items)
	}
	return append([]T(nil), items[offset:end]...), next
}
