package entities

import (
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
)

func (t MediaType) Valid() bool {
	_, ok := maxSizeBytes[t]
	return ok
}

type MediaStatus string

const (
	StatusPendingUpload MediaStatus = "pending_upload"
	StatusUploaded      MediaStatus = "uploaded"
	StatusProcessing    MediaStatus = "processing"
	StatusReady         MediaStatus = "ready"
	StatusFailed        MediaStatus = "failed"
	StatusDeleted       MediaStatus = "deleted"
)

func (s MediaStatus) Valid() bool {
	switch s {
	case StatusPendingUpload, StatusUploaded, StatusProcessing, StatusReady, StatusFailed, StatusDeleted:
		return true
	}
	return false
}

const (
	MB = int64(1024 * 1024)

	MaxTags          = 20
	MaxTitleLength   = 200
	MaxAltTextLength = 500
	MaxBulkItems     = 100
)

var maxSizeBytes = map[MediaType]int64{
	MediaTypeImage:    25 * MB,
	MediaTypeAudio:    200 * MB,
	MediaTypeVideo:    2048 * MB,
	MediaTypeDocument: 50 * MB,
}

var mimeTypes = map[string]MediaType{
	"image/jpeg":      MediaTypeImage,
	"image/png":       MediaTypeImage,
	"image/gif":       MediaTypeImage,
	"image/webp":      MediaTypeImage,
	"image/svg+xml":   MediaTypeImage,
	"video/mp4":       MediaTypeVideo,
	"video/quicktime": MediaTypeVideo,
	"video/webm":      MediaTypeVideo,
	"audio/mpeg":      MediaTypeAudio,
	"audio/wav":       MediaTypeAudio,
	"audio/ogg":       MediaTypeAudio,
	"audio/aac":       MediaTypeAudio,
	"application/pdf": MediaTypeDocument,
	"text/plain":      MediaTypeDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": MediaTypeDocument,
}

// TypeForMime maps an allowed mime type to its media type.
func TypeForMime(mimeType string) (MediaType, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	mediaType, ok := mimeTypes[mimeType]
	return mediaType, ok
}

func MaxSize(mediaType MediaType) int64 {
	return maxSizeBytes[mediaType]
}

var transitions = map[MediaStatus][]MediaStatus{
	StatusPendingUpload: {StatusUploaded, StatusFailed, StatusDeleted},
	StatusUploaded:      {StatusProcessing, StatusDeleted},
	StatusProcessing:    {StatusReady, StatusFailed},
	StatusReady:         {StatusDeleted},
	StatusFailed:        {StatusDeleted},
}

func CanTransition(from MediaStatus, to MediaStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type MediaItem struct {
	MediaID       string
	OwnerID       string
	Filename      string
	Title         string
	MimeType      string
	Type          MediaType
	SizeBytes     int64
	Status        MediaStatus
	StorageKey    string
	Checksum      string
	AltText       string
	Tags          []string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// CountsTowardQuota is false once the item is deleted.
func (m MediaItem) CountsTowardQuota() bool {
	return m.Status != StatusDeleted && m.DeletedAt == nil
}

// StorageKeyFor builds the object key an upload is written to.
func StorageKeyFor(ownerID string, mediaID string, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return "media/" + ownerID + "/" + mediaID + ext
}

// SanitizeFilename keeps the base name and drops path components.
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	base := path.Base(filename)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func ValidTitle(title string) bool {
	return utf8.RuneCountInString(title) <= MaxTitleLength
}

func ValidAltText(alt string) bool {
	return utf8.RuneCountInString(alt) <= MaxAltTextLength
}

// ValidChecksum accepts a hex encoded SHA-256 digest.
func ValidChecksum(checksum string) bool {
	if len(checksum) != 64 {
		return false
	}
	for _, r := range checksum {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
