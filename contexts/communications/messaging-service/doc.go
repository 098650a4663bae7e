// Package messaging implements direct message threads between creators,
// brands and admins: participants, read and archive state per user, edit
// windows and per-sender send limits.
package messaging
