package errors

import "errors"

var (
	ErrInvalidAssetInput      = errors.New("ip asset input is invalid")
	ErrAssetNotFound          = errors.New("ip asset not found")
	ErrInvalidStateTransition = errors.New("ip asset status transition is not allowed")
	ErrAssetNotEditable       = errors.New("ip asset can no longer be edited")
	ErrAssetNotDeletable      = errors.New("only draft or rejected ip assets can be deleted")
	ErrInvalidOwnership       = errors.New("ownership split is invalid")
	ErrForbidden              = errors.New("actor is not allowed to change this ip asset")
	ErrVersionConflict        = errors.New("ip asset was modified concurrently")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different payload")
)
