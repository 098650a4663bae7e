package errors

import "errors"

var (
	ErrInvalidPayoutInput     = errors.New("invalid payout input")
	ErrAccountNotFound        = errors.New("connected account not found")
	ErrAccountNotReady        = errors.New("connected account cannot receive payouts yet")
	ErrPayoutNotFound         = errors.New("payout not found")
	ErrBelowMinimum           = errors.New("payout amount is below the minimum")
	ErrNothingToPay           = errors.New("no available balance to pay out")
	ErrMixedCurrency          = errors.New("payout entries must share one currency")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrForbidden              = errors.New("forbidden")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different payload")
)
