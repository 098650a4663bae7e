package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	stripeadapter "ygbackend/contexts/finance-core/payout-service/adapters/stripe"
	"ygbackend/contexts/finance-core/payout-service/ports"
)

var ErrSandboxAccountNotFound = errors.New("sandbox account not found")

// SandboxGateway stands in for Stripe in development and tests. Webhooks are
// still verified with the real Stripe signature scheme.
type SandboxGateway struct {
	mu            sync.Mutex
	webhookSecret string
	linkBaseURL   string
	accounts      map[string]ports.AccountSnapshot
	byUser        map[string]string
	transfers     map[string]ports.TransferResult
	failures      int
	failErr       error
	nextID        int
}

func NewSandboxGateway(webhookSecret string) *SandboxGateway {
	return &SandboxGateway{
		webhookSecret: webhookSecret,
		linkBaseURL:   "https://connect.stripe.test/setup",
		accounts:      make(map[string]ports.AccountSnapshot),
		byUser:        make(map[string]string),
		transfers:     make(map[string]ports.TransferResult),
	}
}

func (g *SandboxGateway) CreateExpressAccount(_ context.Context, req ports.CreateAccountRequest) (ports.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byUser[req.UserID]; ok {
		return g.accounts[id], nil
	}
	g.nextID++
	snapshot := ports.AccountSnapshot{
		StripeAccountID: fmt.Sprintf("acct_sandbox_%04d", g.nextID),
		Country:         req.Country,
		Email:           req.Email,
		RequirementsDue: []string{"external_account", "tos_acceptance.date"},
	}
	g.accounts[snapshot.StripeAccountID] = snapshot
	g.byUser[req.UserID] = snapshot.StripeAccountID
	return snapshot, nil
}

func (g *SandboxGateway) CreateOnboardingLink(_ context.Context, stripeAccountID string) (ports.OnboardingLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.accounts[stripeAccountID]; !ok {
		return ports.OnboardingLink{}, ErrSandboxAccountNotFound
	}
	return ports.OnboardingLink{
		URL:       strings.TrimRight(g.linkBaseURL, "/") + "/" + stripeAccountID,
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}, nil
}

func (g *SandboxGateway) GetAccount(_ context.Context, stripeAccountID string) (ports.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snapshot, ok := g.accounts[stripeAccountID]
	if !ok {
		return ports.AccountSnapshot{}, ErrSandboxAccountNotFound
	}
	return snapshot, nil
}

func (g *SandboxGateway) CreateTransfer(_ context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.transfers[req.PayoutID]; ok {
		return existing, nil
	}
	if g.failures > 0 {
		g.failures--
		return ports.TransferResult{}, g.failErr
	}
	if _, ok := g.accounts[req.DestinationAccountID]; !ok {
		return ports.TransferResult{}, ErrSandboxAccountNotFound
	}
	g.nextID++
	result := ports.TransferResult{TransferID: fmt.Sprintf("tr_sandbox_%04d", g.nextID)}
	g.transfers[req.PayoutID] = result
	return result, nil
}

func (g *SandboxGateway) ParseWebhook(payload []byte, signature string) (ports.WebhookEvent, error) {
	return stripeadapter.DecodeEvent(payload, signature, g.webhookSecret)
}

// CompleteOnboarding marks the account as fully verified.
func (g *SandboxGateway) CompleteOnboarding(stripeAccountID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snapshot := g.accounts[stripeAccountID]
	snapshot.StripeAccountID = stripeAccountID
	snapshot.ChargesEnabled = true
	snapshot.PayoutsEnabled = true
	snapshot.DetailsSubmitted = true
	snapshot.RequirementsDue = nil
	g.accounts[stripeAccountID] = snapshot
}

// FailTransfers makes the next n transfer attempts return err.
func (g *SandboxGateway) FailTransfers(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = n
	g.failErr = err
}

func (g *SandboxGateway) TransferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}
