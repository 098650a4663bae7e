package entities

import "time"

type Channel string

const ChannelEmail Channel = "email"

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

const MaxDeliveryAttempts = 5

type Delivery struct {
	DeliveryID     string
	NotificationID string
	UserID         string
	Channel        Channel
	Status         DeliveryStatus
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// RecordFailure bumps the attempt count. The delivery is failed for good once
// MaxDeliveryAttempts is reached; otherwise it is rescheduled after delay.
func (d *Delivery) RecordFailure(reason string, now time.Time, delay time.Duration) {
	d.Attempts++
	d.LastError = reason
	if d.Attempts >= MaxDeliveryAttempts {
		d.Status = DeliveryFailed
		return
	}
	d.NextAttemptAt = now.Add(delay)
}

func (d *Delivery) RecordSuccess(now time.Time) {
	d.Attempts++
	d.Status = DeliveryDelivered
	d.LastError = ""
	d.DeliveredAt = &now
}
