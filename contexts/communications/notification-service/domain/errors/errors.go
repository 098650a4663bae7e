package errors

import "errors"

var (
	ErrInvalidNotificationInput = errors.New("invalid notification input")
	ErrInvalidPreferences       = errors.New("invalid notification preferences")
	ErrNotificationNotFound     = errors.New("notification not found")
	ErrDeliveryNotFound         = errors.New("delivery not found")
	ErrForbidden                = errors.New("forbidden")
)
