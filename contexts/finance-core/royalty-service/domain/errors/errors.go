package errors

import "errors"

var (
	ErrInvalidRevenueInput    = errors.New("invalid revenue input")
	ErrRevenueConflict        = errors.New("revenue entry already recorded with different values")
	ErrInvalidPeriod          = errors.New("period end must be after period start")
	ErrRunOverlap             = errors.New("period overlaps a locked royalty run")
	ErrRunNotFound            = errors.New("royalty run not found")
	ErrInvalidRunState        = errors.New("royalty run is not in a valid state for this operation")
	ErrStatementNotFound      = errors.New("royalty statement not found")
	ErrInvalidStatementState  = errors.New("royalty statement is not in a valid state for this operation")
	ErrInvalidDisputeInput    = errors.New("invalid dispute input")
	ErrInvalidAdjustment      = errors.New("adjustment would make net payable negative")
	ErrForbidden              = errors.New("forbidden")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different payload")
)
