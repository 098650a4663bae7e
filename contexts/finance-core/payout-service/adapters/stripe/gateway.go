// Package stripeadapter talks to Stripe Connect for account onboarding,
// transfers and webhook verification.
package stripeadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/payout-service/ports"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")

type Config struct {
	SecretKey     string
	WebhookSecret string
	ReturnURL     string
	RefreshURL    string
}

type Gateway struct {
	api *client.API
	cfg Config
}

func NewGateway(cfg Config) *Gateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Gateway{api: api, cfg: cfg}
}

func (g *Gateway) CreateExpressAccount(ctx context.Context, req ports.CreateAccountRequest) (ports.AccountSnapshot, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(req.Country),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	// One account per user even if the first response is lost.
	params.SetIdempotencyKey("connect-account-" + req.UserID)
	account, err := g.api.Accounts.New(params)
	if err != nil {
		return ports.AccountSnapshot{}, fmt.Errorf("create express account: %w", err)
	}
	return SnapshotFromAccount(account), nil
}

func (g *Gateway) CreateOnboardingLink(ctx context.Context, stripeAccountID string) (ports.OnboardingLink, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(stripeAccountID),
		RefreshURL: stripe.String(g.cfg.RefreshURL),
		ReturnURL:  stripe.String(g.cfg.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return ports.OnboardingLink{}, fmt.Errorf("create account link: %w", err)
	}
	return ports.OnboardingLink{URL: link.URL, ExpiresAt: time.Unix(link.ExpiresAt, 0).UTC()}, nil
}

func (g *Gateway) GetAccount(ctx context.Context, stripeAccountID string) (ports.AccountSnapshot, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	account, err := g.api.Accounts.GetByID(stripeAccountID, params)
	if err != nil {
		return ports.AccountSnapshot{}, fmt.Errorf("get account %s: %w", stripeAccountID, err)
	}
	return SnapshotFromAccount(account), nil
}

func (g *Gateway) CreateTransfer(ctx context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.DestinationAccountID),
		TransferGroup: stripe.String(req.PayoutID),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("payout_id", req.PayoutID)
	params.SetIdempotencyKey(req.PayoutID)
	transfer, err := g.api.Transfers.New(params)
	if err != nil {
		return ports.TransferResult{}, fmt.Errorf("create transfer: %w", err)
	}
	return ports.TransferResult{TransferID: transfer.ID}, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (ports.WebhookEvent, error) {
	return DecodeEvent(payload, signature, g.cfg.WebhookSecret)
}

// DecodeEvent verifies the Stripe-Signature header and maps the events the
// payout flow reacts to. Other event types come back with only id and type.
func DecodeEvent(payload []byte, signature string, secret string) (ports.WebhookEvent, error) {
	if strings.TrimSpace(secret) == "" {
		return ports.WebhookEvent{}, ErrWebhookSecretMissing
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return ports.WebhookEvent{}, err
	}
	out := ports.WebhookEvent{EventID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	switch out.Type {
	case ports.WebhookAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return ports.WebhookEvent{}, fmt.Errorf("decode account: %w", err)
		}
		snapshot := SnapshotFromAccount(&account)
		out.Account = &snapshot
	case ports.WebhookTransferReversed:
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &transfer); err != nil {
			return ports.WebhookEvent{}, fmt.Errorf("decode transfer: %w", err)
		}
		out.TransferID = transfer.ID
		out.PayoutID = transfer.Metadata["payout_id"]
		if out.PayoutID == "" {
			out.PayoutID = transfer.TransferGroup
		}
	}
	return out, nil
}

func SnapshotFromAccount(account *stripe.Account) ports.AccountSnapshot {
	if account == nil {
		return ports.AccountSnapshot{}
	}
	snapshot := ports.AccountSnapshot{
		StripeAccountID:  account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		Country:          account.Country,
		Email:            account.Email,
	}
	if account.Requirements != nil {
		snapshot.RequirementsDue = append([]string(nil), account.Requirements.CurrentlyDue...)
		snapshot.DisabledReason = string(account.Requirements.DisabledReason)
	}
	return snapshot
}
