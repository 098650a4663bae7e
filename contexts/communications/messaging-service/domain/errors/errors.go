package errors

import "errors"

var (
	ErrInvalidThreadInput     = errors.New("invalid thread input")
	ErrInvalidMessageInput    = errors.New("invalid message input")
	ErrThreadNotFound         = errors.New("thread not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrForbidden              = errors.New("forbidden")
	ErrRateLimited            = errors.New("message rate limit exceeded")
	ErrEditWindowClosed       = errors.New("message can no longer be edited")
	ErrMessageDeleted         = errors.New("message was deleted")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different request")
)
