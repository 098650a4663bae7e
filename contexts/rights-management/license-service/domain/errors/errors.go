package errors

import "errors"

var (
	ErrInvalidLicenseInput    = errors.New("license input is invalid")
	ErrLicenseNotFound        = errors.New("license not found")
	ErrAmendmentNotFound      = errors.New("amendment not found")
	ErrInvalidStateTransition = errors.New("license status transition is not allowed")
	ErrExclusivityConflict    = errors.New("license conflicts with an existing exclusive grant")
	ErrForbidden              = errors.New("actor is not a party to this license")
	ErrVersionConflict        = errors.New("license changed since the amendment was proposed")
	ErrAmendmentDecided       = errors.New("amendment was already decided")
	ErrInvalidAmendment       = errors.New("amendment changes are invalid")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different payload")
)
