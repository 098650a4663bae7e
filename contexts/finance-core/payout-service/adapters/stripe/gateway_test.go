package stripeadapter

import (
	"encoding/json"
	"testing"
	"time"

	"ygbackend/contexts/finance-core/payout-service/ports"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signedPayload(t *testing.T, event map[string]any, secret string) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestDecodeEventAccountUpdated(t *testing.T) {
	payload, header := signedPayload(t, map[string]any{
		"id":     "evt_account",
		"object": "event",
		"type":   "account.updated",
		"data": map[string]any{"object": map[string]any{
			"id":                "acct_123",
			"object":            "account",
			"charges_enabled":   true,
			"payouts_enabled":   false,
			"details_submitted": true,
			"country":           "US",
			"requirements": map[string]any{
				"currently_due":   []string{"external_account"},
				"disabled_reason": "requirements.past_due",
			},
		}},
	}, testSecret)

	event, err := DecodeEvent(payload, header, testSecret)
	require.NoError(t, err)
	require.Equal(t, "evt_account", event.EventID)
	require.Equal(t, ports.WebhookAccountUpdated, event.Type)
	require.NotNil(t, event.Account)
	require.Equal(t, "acct_123", event.Account.StripeAccountID)
	require.True(t, event.Account.ChargesEnabled)
	require.True(t, event.Account.DetailsSubmitted)
	require.Equal(t, []string{"external_account"}, event.Account.RequirementsDue)
	require.Equal(t, "requirements.past_due", event.Account.DisabledReason)
}

func TestDecodeEventTransferReversedUsesMetadata(t *testing.T) {
	payload, header := signedPayload(t, map[string]any{
		"id":     "evt_reversal",
		"object": "event",
		"type":   "transfer.reversed",
		"data": map[string]any{"object": map[string]any{
			"id":             "tr_9",
			"object":         "transfer",
			"transfer_group": "group-fallback",
			"metadata":       map[string]string{"payout_id": "payout-1"},
		}},
	}, testSecret)

	event, err := DecodeEvent(payload, header, testSecret)
	require.NoError(t, err)
	require.Equal(t, "tr_9", event.TransferID)
	require.Equal(t, "payout-1", event.PayoutID)
}

func TestDecodeEventRejectsBadSignature(t *testing.T) {
	payload, header := signedPayload(t, map[string]any{"id": "evt_1", "object": "event", "type": "account.updated"}, "whsec_other")
	_, err := DecodeEvent(payload, header, testSecret)
	require.Error(t, err)

	_, err = DecodeEvent(payload, header, "")
	require.ErrorIs(t, err, ErrWebhookSecretMissing)
}

func TestDecodeEventUnknownTypeKeepsIdentity(t *testing.T) {
	payload, header := signedPayload(t, map[string]any{
		"id":     "evt_other",
		"object": "event",
		"type":   "payout.paid",
		"data":   map[string]any{"object": map[string]any{"id": "po_1", "object": "payout"}},
	}, testSecret)

	event, err := DecodeEvent(payload, header, testSecret)
	require.NoError(t, err)
	require.Equal(t, "payout.paid", event.Type)
	require.Nil(t, event.Account)
	require.Empty(t, event.TransferID)
}
