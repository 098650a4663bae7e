// Package notification turns platform events into per-user notifications,
// serves them to polling clients and mails the urgent ones.
package notification
