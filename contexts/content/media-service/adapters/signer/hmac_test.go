package signer

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	s := NewHMACSigner("secret", "https://cdn.example.com/files/")
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	expires := now.Add(15 * time.Minute)

	signed := s.SignURL("get", "media/u1/m1.png", expires)
	if !strings.HasPrefix(signed, "https://cdn.example.com/files/media/u1/m1.png?") {
		t.Fatalf("unexpected url %s", signed)
	}
	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	signature := parsed.Query().Get("signature")
	if !s.Verify("GET", "media/u1/m1.png", expires, signature, now) {
		t.Fatalf("expected signature to verify")
	}
	if s.Verify("PUT", "media/u1/m1.png", expires, signature, now) {
		t.Fatalf("expected method to be bound into the signature")
	}
	if s.Verify("GET", "media/u1/m1.png", expires, signature, expires) {
		t.Fatalf("expected expired url to fail")
	}
	if NewHMACSigner("other", "").Verify("GET", "media/u1/m1.png", expires, signature, now) {
		t.Fatalf("expected different secret to fail")
	}
}
