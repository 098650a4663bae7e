// Package media tracks uploaded files from signed upload through processing
// to signed download, enforcing per-type size limits and per-owner quota.
package media
