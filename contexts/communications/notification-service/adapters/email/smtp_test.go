package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"ygbackend/contexts/communications/notification-service/ports"
)

func TestSMTPSenderComposesMessage(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.test", Username: "u", Password: "p", From: "no-reply@test"})
	sender.now = func() time.Time { return time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC) }
	var gotAddr string
	var gotMsg []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		if from != "no-reply@test" || len(to) != 1 || to[0] != "a@example.com" {
			t.Fatalf("unexpected envelope %s -> %v", from, to)
		}
		return nil
	}

	err := sender.Send(context.Background(), ports.EmailMessage{To: "a@example.com", Subject: "Payout sent", Body: "line one\nline two"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.test:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Payout sent\r\n") || !strings.Contains(msg, "line one\r\nline two") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.test", From: "no-reply@test"})
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send")
		return nil
	}
	err := sender.Send(context.Background(), ports.EmailMessage{To: "a@example.com\r\nBcc: x@y", Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected header injection rejected")
	}
}
