package entities

import (
	"testing"
	"time"
)

func TestPollAfterSeconds(t *testing.T) {
	cases := []struct {
		name   string
		urgent int
		fresh  int
		want   int
	}{
		{"urgent unread", 1, 0, PollFastSeconds},
		{"new items", 0, 3, PollNormalSeconds},
		{"idle", 0, 0, PollIdleSeconds},
	}
	for _, tc := range cases {
		if got := PollAfterSeconds(tc.urgent, tc.fresh); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences("u1")
	for _, typ := range AllTypes {
		if !prefs.TypeEnabled(typ) {
			t.Fatalf("expected %s enabled", typ)
		}
	}
	if !prefs.EmailsImmediately() {
		t.Fatal("expected immediate email by default")
	}
	prefs.EnabledTypes[TypeMessage] = false
	if prefs.TypeEnabled(TypeMessage) {
		t.Fatal("expected message disabled")
	}
	prefs.DigestFrequency = DigestDaily
	if prefs.EmailsImmediately() {
		t.Fatal("daily digest must not email immediately")
	}
}

func TestDeliveryFailureSchedule(t *testing.T) {
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	delivery := Delivery{Status: DeliveryPending}
	for i := 1; i < MaxDeliveryAttempts; i++ {
		delivery.RecordFailure("smtp down", now, time.Minute)
		if delivery.Status != DeliveryPending || delivery.Attempts != i {
			t.Fatalf("attempt %d: unexpected delivery %+v", i, delivery)
		}
	}
	delivery.RecordFailure("smtp down", now, time.Minute)
	if delivery.Status != DeliveryFailed {
		t.Fatalf("expected failed after %d attempts, got %s", MaxDeliveryAttempts, delivery.Status)
	}
}

func TestNotificationValidate(t *testing.T) {
	valid := Notification{UserID: "u", Type: TypeLicense, Priority: PriorityHigh, Title: "t", Message: "m"}
	if !valid.Validate() {
		t.Fatal("expected valid notification")
	}
	invalid := valid
	invalid.Priority = "critical"
	if invalid.Validate() {
		t.Fatal("expected unknown priority rejected")
	}
	if ValidEmailAddress("not an email") || !ValidEmailAddress("a@example.com") || !ValidEmailAddress("") {
		t.Fatal("email validation is wrong")
	}
}
