package errors

import "errors"

var (
	ErrInvalidMediaInput      = errors.New("media input is invalid")
	ErrUnsupportedMimeType    = errors.New("mime type is not allowed")
	ErrFileTooLarge           = errors.New("file exceeds the size limit for its type")
	ErrQuotaExceeded          = errors.New("storage quota exceeded")
	ErrMediaNotFound          = errors.New("media not found")
	ErrInvalidStateTransition = errors.New("media status transition is not allowed")
	ErrMediaNotReady          = errors.New("media is not ready for download")
	ErrForbidden              = errors.New("actor does not own this media")
	ErrTooManyItems           = errors.New("too many items in bulk request")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different payload")
)
