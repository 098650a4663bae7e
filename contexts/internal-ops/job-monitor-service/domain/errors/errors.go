package errors

import "errors"

var (
	ErrInvalidSnapshot  = errors.New("queue snapshot is invalid")
	ErrInvalidPolicy    = errors.New("queue policy is invalid")
	ErrInvalidJobRun    = errors.New("job run is invalid")
	ErrInvalidHeartbeat = errors.New("worker heartbeat is invalid")
	ErrQueueNotFound    = errors.New("queue has no recorded snapshot")
	ErrWorkerNotFound   = errors.New("worker not found")
)
