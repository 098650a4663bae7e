package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ygbackend/contexts/finance-core/payout-service/domain/entities"
	domainerrors "ygbackend/contexts/finance-core/payout-service/domain/errors"
	"ygbackend/contexts/finance-core/payout-service/ports"
)

const (
	module                 = "finance-core/payout-service"
	defaultIdempotencyTTL  = 7 * 24 * time.Hour
	defaultPageSize        = 20
	maxPageSize            = 100
	defaultMinPayoutCents  = 1000
	defaultCountry         = "US"
	defaultProcessingLease = 10 * time.Minute
)

type Service struct {
	Repo           ports.Repository
	Gateway        ports.StripeGateway
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Tx             ports.Transactor
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Retry          ports.RetryPolicy
	IdempotencyTTL time.Duration
	MinPayoutCents int64
	Country        string
	// ProcessingLease bounds how long a claimed payout stays processing
	// before another worker may retry it.
	ProcessingLease time.Duration
	Logger          *slog.Logger
}

type OnboardingResult struct {
	Account   entities.ConnectedAccount
	URL       string
	ExpiresAt time.Time
}

type WebhookResult struct {
	EventID   string
	Type      string
	Handled   bool
	Duplicate bool
}

type BalanceResult struct {
	UserID         string
	MinPayoutCents int64
	Balances       []entities.Balance
}

type RequestPayoutInput struct {
	// StatementIDs narrows the payout to these statements; empty means every
	// available entry.
	StatementIDs []string
	Currency     string
}

type PayoutResult struct {
	Payout   entities.Payout `json:"payout"`
	Replayed bool            `json:"-"`
}

type CreditInput struct {
	StatementID     string
	CreatorID       string
	NetPayableCents int64
	Currency        string
}

// StartOnboarding creates the caller's Express account on first use and
// returns a fresh onboarding link.
func (s Service) StartOnboarding(ctx context.Context, actor ports.Actor, email string) (OnboardingResult, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return OnboardingResult{}, domainerrors.ErrForbidden
	}
	account, found, err := s.Repo.GetAccountByUser(ctx, userID)
	if err != nil {
		return OnboardingResult{}, err
	}
	if !found {
		snapshot, err := s.Gateway.CreateExpressAccount(ctx, ports.CreateAccountRequest{
			UserID:  userID,
			Email:   strings.TrimSpace(email),
			Country: s.country(),
		})
		if err != nil {
			return OnboardingResult{}, errors.Join(domainerrors.ErrGatewayUnavailable, err)
		}
		now := s.now()
		account = entities.ConnectedAccount{UserID: userID, CreatedAt: now}
		account = applySnapshot(account, snapshot, now)
		if err := s.Repo.SaveAccount(ctx, account); err != nil {
			return OnboardingResult{}, err
		}
		s.logger().Info("connected account created",
			"event", "payout_account_created",
			"module", module,
			"layer", "application",
			"user_id", userID,
			"stripe_account_id", account.StripeAccountID,
		)
	}
	link, err := s.Gateway.CreateOnboardingLink(ctx, account.StripeAccountID)
	if err != nil {
		return OnboardingResult{}, errors.Join(domainerrors.ErrGatewayUnavailable, err)
	}
	return OnboardingResult{Account: account, URL: link.URL, ExpiresAt: link.ExpiresAt.UTC()}, nil
}

func (s Service) RefreshOnboardingLink(ctx context.Context, actor ports.Actor) (OnboardingResult, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return OnboardingResult{}, domainerrors.ErrForbidden
	}
	account, found, err := s.Repo.GetAccountByUser(ctx, userID)
	if err != nil {
		return OnboardingResult{}, err
	}
	if !found {
		return OnboardingResult{}, domainerrors.ErrAccountNotFound
	}
	link, err := s.Gateway.CreateOnboardingLink(ctx, account.StripeAccountID)
	if err != nil {
		return OnboardingResult{}, errors.Join(domainerrors.ErrGatewayUnavailable, err)
	}
	return OnboardingResult{Account: account, URL: link.URL, ExpiresAt: link.ExpiresAt.UTC()}, nil
}

// GetAccount returns the stored account, refreshing it from Stripe first when
// sync is set.
func (s Service) GetAccount(ctx context.Context, actor ports.Actor, userID string, sync bool) (entities.ConnectedAccount, error) {
	userID, err := s.resolveUser(actor, userID)
	if err != nil {
		return entities.ConnectedAccount{}, err
	}
	account, found, err := s.Repo.GetAccountByUser(ctx, userID)
	if err != nil {
		return entities.ConnectedAccount{}, err
	}
	if !found {
		return entities.ConnectedAccount{}, domainerrors.ErrAccountNotFound
	}
	if !sync {
		return account, nil
	}
	snapshot, err := s.Gateway.GetAccount(ctx, account.StripeAccountID)
	if err != nil {
		return entities.ConnectedAccount{}, errors.Join(domainerrors.ErrGatewayUnavailable, err)
	}
	account = applySnapshot(account, snapshot, s.now())
	if err := s.Repo.SaveAccount(ctx, account); err != nil {
		return entities.ConnectedAccount{}, err
	}
	return account, nil
}

// HandleWebhook verifies and applies one Stripe callback. Each event id is
// applied once; types we do not act on are acknowledged.
func (s Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger().Warn("payout webhook rejected",
			"event", "payout_webhook_rejected",
			"module", module,
			"layer", "application",
			"error", err.Error(),
		)
		return WebhookResult{}, domainerrors.ErrInvalidSignature
	}
	result := WebhookResult{EventID: event.EventID, Type: event.Type}
	err = s.withinTx(ctx, func(ctx context.Context) error {
		processed, err := s.Repo.WebhookProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			result.Duplicate = true
			return nil
		}
		switch event.Type {
		case ports.WebhookAccountUpdated:
			result.Handled, err = s.syncAccountFromWebhook(ctx, event)
		case ports.WebhookTransferReversed:
			result.Handled, err = s.reverseTransfer(ctx, event)
		}
		if err != nil {
			return err
		}
		return s.Repo.RecordWebhook(ctx, event.EventID, event.Type, s.now())
	})
	if err != nil {
		return WebhookResult{}, err
	}
	s.logger().Info("payout webhook processed",
		"event", "payout_webhook_processed",
		"module", module,
		"layer", "application",
		"stripe_event_id", event.EventID,
		"stripe_event_type", event.Type,
		"handled", result.Handled,
		"duplicate", result.Duplicate,
	)
	return result, nil
}

func (s Service) syncAccountFromWebhook(ctx context.Context, event ports.WebhookEvent) (bool, error) {
	if event.Account == nil {
		return false, nil
	}
	account, found, err := s.Repo.GetAccountByStripeID(ctx, event.Account.StripeAccountID)
	if err != nil || !found {
		return false, err
	}
	account = applySnapshot(account, *event.Account, s.now())
	return true, s.Repo.SaveAccount(ctx, account)
}

func (s Service) reverseTransfer(ctx context.Context, event ports.WebhookEvent) (bool, error) {
	payoutID := event.PayoutID
	if payoutID == "" && event.TransferID != "" {
		payout, found, err := s.Repo.GetPayoutByTransferID(ctx, event.TransferID)
		if err != nil || !found {
			return false, err
		}
		payoutID = payout.PayoutID
	}
	if payoutID == "" {
		return false, nil
	}
	payout, err := s.Repo.GetPayoutForUpdate(ctx, payoutID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPayoutNotFound) {
			return false, nil
		}
		return false, err
	}
	now := s.now()
	if !payout.Reverse("transfer_reversed", now) {
		return false, nil
	}
	if err := s.Repo.UpdatePayout(ctx, payout); err != nil {
		return false, err
	}
	if err := s.releaseEntries(ctx, payout.PayoutID, now); err != nil {
		return false, err
	}
	return true, s.appendPayoutEvent(ctx, payoutFailed, payout)
}

func (s Service) GetBalance(ctx context.Context, actor ports.Actor, userID string) (BalanceResult, error) {
	userID, err := s.resolveUser(actor, userID)
	if err != nil {
		return BalanceResult{}, err
	}
	entries, err := s.Repo.ListLedgerEntries(ctx, ports.LedgerFilter{UserID: userID})
	if err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{UserID: userID, MinPayoutCents: s.minPayout(), Balances: entities.Balances(entries)}, nil
}

// RequestPayout reserves the caller's available entries into a pending
// payout. An Idempotency-Key is required.
func (s Service) RequestPayout(ctx context.Context, actor ports.Actor, idempotencyKey string, input RequestPayoutInput) (PayoutResult, error) {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return PayoutResult{}, domainerrors.ErrForbidden
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return PayoutResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	statementIDs := normalizeIDs(input.StatementIDs)
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	requestHash, err := hashRequest(map[string]any{
		"user_id":       userID,
		"statement_ids": statementIDs,
		"currency":      currency,
	})
	if err != nil {
		return PayoutResult{}, err
	}
	// Keys are scoped per user so two creators can't collide.
	key := "payout:" + userID + ":" + strings.TrimSpace(idempotencyKey)

	var result PayoutResult
	err = s.withinTx(ctx, func(ctx context.Context) error {
		var stored PayoutResult
		replayed, err := s.replay(ctx, key, requestHash, &stored)
		if err != nil {
			return err
		}
		if replayed {
			result = PayoutResult{Payout: stored.Payout, Replayed: true}
			return nil
		}
		account, found, err := s.Repo.GetAccountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			return domainerrors.ErrAccountNotFound
		}
		if !account.CanReceivePayouts() {
			return domainerrors.ErrAccountNotReady
		}
		available, err := s.Repo.ListLedgerEntries(ctx, ports.LedgerFilter{UserID: userID, Status: entities.LedgerAvailable})
		if err != nil {
			return err
		}
		selected, err := selectEntries(available, statementIDs, currency)
		if err != nil {
			return err
		}
		var amount int64
		for _, entry := range selected {
			amount += entry.AmountCents
		}
		if amount < s.minPayout() {
			return domainerrors.ErrBelowMinimum
		}
		payoutID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		payout := entities.Payout{
			PayoutID:        payoutID,
			UserID:          userID,
			StripeAccountID: account.StripeAccountID,
			AmountCents:     amount,
			Currency:        selected[0].Currency,
			Status:          entities.PayoutPending,
			NextAttemptAt:   now,
			RequestedAt:     now,
			UpdatedAt:       now,
		}
		for _, entry := range selected {
			payout.StatementIDs = append(payout.StatementIDs, entry.StatementID)
		}
		if err := s.Repo.CreatePayout(ctx, payout); err != nil {
			return err
		}
		for _, entry := range selected {
			entry.Reserve(payoutID, now)
			if err := s.Repo.SaveLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		result = PayoutResult{Payout: payout}
		return s.remember(ctx, key, requestHash, result)
	})
	if err != nil {
		return PayoutResult{}, err
	}
	if !result.Replayed {
		s.logger().Info("payout requested",
			"event", "payout_requested",
			"module", module,
			"layer", "application",
			"payout_id", result.Payout.PayoutID,
			"user_id", userID,
			"amount_cents", result.Payout.AmountCents,
			"currency", result.Payout.Currency,
		)
	}
	return result, nil
}

func selectEntries(available []entities.LedgerEntry, statementIDs []string, currency string) ([]entities.LedgerEntry, error) {
	byStatement := make(map[string]entities.LedgerEntry, len(available))
	for _, entry := range available {
		byStatement[entry.StatementID] = entry
	}
	selected := make([]entities.LedgerEntry, 0, len(available))
	if len(statementIDs) > 0 {
		for _, id := range statementIDs {
			entry, ok := byStatement[id]
			if !ok {
				return nil, domainerrors.ErrNothingToPay
			}
			selected = append(selected, entry)
		}
	} else {
		selected = append(selected, available...)
	}
	if currency != "" {
		filtered := selected[:0]
		for _, entry := range selected {
			if entry.Currency == currency {
				filtered = append(filtered, entry)
			} else if len(statementIDs) > 0 {
				return nil, domainerrors.ErrMixedCurrency
			}
		}
		selected = filtered
	}
	if len(selected) == 0 {
		return nil, domainerrors.ErrNothingToPay
	}
	for _, entry := range selected[1:] {
		if entry.Currency != selected[0].Currency {
			return nil, domainerrors.ErrMixedCurrency
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].StatementID < selected[j].StatementID })
	return selected, nil
}

func (s Service) ListPayouts(ctx context.Context, actor ports.Actor, filter ports.PayoutFilter) ([]entities.Payout, bool, error) {
	userID, err := s.resolveUser(actor, filter.UserID)
	if err != nil {
		return nil, false, err
	}
	// Admins may list across users by leaving the user filter empty.
	if actor.IsAdmin && strings.TrimSpace(filter.UserID) == "" {
		userID = ""
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, false, domainerrors.ErrInvalidPayoutInput
	}
	filter.UserID = userID
	limit := normalizeLimit(filter.Limit)
	filter.Limit = limit + 1
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	payouts, err := s.Repo.ListPayouts(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(payouts) > limit {
		return payouts[:limit], true, nil
	}
	return payouts, false, nil
}

func (s Service) GetPayout(ctx context.Context, actor ports.Actor, payoutID string) (entities.Payout, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return entities.Payout{}, domainerrors.ErrForbidden
	}
	payout, err := s.Repo.GetPayout(ctx, strings.TrimSpace(payoutID))
	if err != nil {
		return entities.Payout{}, err
	}
	if !actor.IsAdmin && payout.UserID != actor.UserID {
		return entities.Payout{}, domainerrors.ErrForbidden
	}
	return payout, nil
}

// CreditStatement records an issued statement as available balance. A
// re-issued statement updates the amount while the entry is still available.
func (s Service) CreditStatement(ctx context.Context, input CreditInput) (entities.LedgerEntry, bool, error) {
	statementID := strings.TrimSpace(input.StatementID)
	userID := strings.TrimSpace(input.CreatorID)
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if statementID == "" || userID == "" || currency == "" {
		return entities.LedgerEntry{}, false, domainerrors.ErrInvalidPayoutInput
	}
	if input.NetPayableCents <= 0 {
		return entities.LedgerEntry{}, false, nil
	}
	var entry entities.LedgerEntry
	var changed bool
	err := s.withinTx(ctx, func(ctx context.Context) error {
		existing, found, err := s.Repo.GetLedgerEntryByStatement(ctx, statementID)
		if err != nil {
			return err
		}
		now := s.now()
		if found {
			entry = existing
			if existing.Status != entities.LedgerAvailable || (existing.AmountCents == input.NetPayableCents && existing.Currency == currency) {
				return nil
			}
			entry.AmountCents = input.NetPayableCents
			entry.Currency = currency
			entry.UpdatedAt = now
			changed = true
			return s.Repo.SaveLedgerEntry(ctx, entry)
		}
		entryID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		entry = entities.LedgerEntry{
			EntryID:     entryID,
			UserID:      userID,
			StatementID: statementID,
			AmountCents: input.NetPayableCents,
			Currency:    currency,
			Status:      entities.LedgerAvailable,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		changed = true
		return s.Repo.SaveLedgerEntry(ctx, entry)
	})
	if err != nil {
		return entities.LedgerEntry{}, false, err
	}
	return entry, changed, nil
}

// ProcessPayout runs one transfer attempt. The gateway call happens outside
// any transaction; the transfer is keyed by payout id.
func (s Service) ProcessPayout(ctx context.Context, payoutID string) (entities.Payout, error) {
	var payout entities.Payout
	var claimed bool
	err := s.withinTx(ctx, func(ctx context.Context) error {
		var err error
		payout, err = s.Repo.GetPayoutForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		claimed = payout.BeginAttempt(s.now(), s.lease())
		if !claimed {
			return nil
		}
		return s.Repo.UpdatePayout(ctx, payout)
	})
	if err != nil || !claimed {
		return payout, err
	}

	transfer, transferErr := s.Gateway.CreateTransfer(ctx, ports.TransferRequest{
		PayoutID:             payout.PayoutID,
		DestinationAccountID: payout.StripeAccountID,
		AmountCents:          payout.AmountCents,
		Currency:             payout.Currency,
		Description:          "Royalty payout " + payout.PayoutID,
	})

	err = s.withinTx(ctx, func(ctx context.Context) error {
		current, err := s.Repo.GetPayoutForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if current.Status != entities.PayoutProcessing || current.Attempts != payout.Attempts {
			payout = current
			return nil
		}
		payout = current
		now := s.now()
		if transferErr == nil {
			payout.Complete(transfer.TransferID, now)
			if err := s.Repo.UpdatePayout(ctx, payout); err != nil {
				return err
			}
			if err := s.settleEntries(ctx, payout.PayoutID, now); err != nil {
				return err
			}
			return s.appendPayoutEvent(ctx, payoutCompleted, payout)
		}
		final := payout.RecordFailure(transferErr.Error(), now, s.retryDelay(payout.Attempts))
		if err := s.Repo.UpdatePayout(ctx, payout); err != nil {
			return err
		}
		if !final {
			return nil
		}
		if err := s.releaseEntries(ctx, payout.PayoutID, now); err != nil {
			return err
		}
		return s.appendPayoutEvent(ctx, payoutFailed, payout)
	})
	if err != nil {
		return entities.Payout{}, err
	}

	logger := s.logger()
	switch payout.Status {
	case entities.PayoutPaid:
		logger.Info("payout transferred",
			"event", "payout_completed",
			"module", module,
			"layer", "application",
			"payout_id", payout.PayoutID,
			"transfer_id", payout.StripeTransferID,
		)
	case entities.PayoutFailed:
		logger.Error("payout failed",
			"event", "payout_failed",
			"module", module,
			"layer", "application",
			"payout_id", payout.PayoutID,
			"attempts", payout.Attempts,
			"error", payout.FailureReason,
		)
	case entities.PayoutPending:
		logger.Warn("payout transfer failed, retry scheduled",
			"event", "payout_retry_scheduled",
			"module", module,
			"layer", "application",
			"payout_id", payout.PayoutID,
			"attempts", payout.Attempts,
			"next_attempt_at", payout.NextAttemptAt,
			"error", payout.FailureReason,
		)
	}
	return payout, nil
}

func (s Service) DuePayouts(ctx context.Context, limit int) ([]string, error) {
	return s.Repo.ListDuePayouts(ctx, s.now(), limit)
}

func (s Service) settleEntries(ctx context.Context, payoutID string, now time.Time) error {
	entries, err := s.Repo.ListLedgerEntries(ctx, ports.LedgerFilter{PayoutID: payoutID})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		entry.Settle(now)
		if err := s.Repo.SaveLedgerEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) releaseEntries(ctx context.Context, payoutID string, now time.Time) error {
	entries, err := s.Repo.ListLedgerEntries(ctx, ports.LedgerFilter{PayoutID: payoutID})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		entry.Release(now)
		if err := s.Repo.SaveLedgerEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func applySnapshot(account entities.ConnectedAccount, snapshot ports.AccountSnapshot, now time.Time) entities.ConnectedAccount {
	if snapshot.StripeAccountID != "" {
		account.StripeAccountID = snapshot.StripeAccountID
	}
	account.ChargesEnabled = snapshot.ChargesEnabled
	account.PayoutsEnabled = snapshot.PayoutsEnabled
	account.DetailsSubmitted = snapshot.DetailsSubmitted
	account.RequirementsDue = append([]string(nil), snapshot.RequirementsDue...)
	account.DisabledReason = snapshot.DisabledReason
	if snapshot.Country != "" {
		account.Country = snapshot.Country
	}
	if snapshot.Email != "" {
		account.Email = snapshot.Email
	}
	account.Status = entities.DeriveStatus(account)
	account.UpdatedAt = now
	return account
}

func (s Service) resolveUser(actor ports.Actor, userID string) (string, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return "", domainerrors.ErrForbidden
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == actor.UserID {
		return actor.UserID, nil
	}
	if !actor.IsAdmin {
		return "", domainerrors.ErrForbidden
	}
	return userID, nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s Service) retryDelay(attempt int) time.Duration {
	if s.Retry == nil {
		return time.Minute
	}
	return s.Retry.Delay(attempt)
}

func (s Service) minPayout() int64 {
	if s.MinPayoutCents <= 0 {
		return defaultMinPayoutCents
	}
	return s.MinPayoutCents
}

func (s Service) country() string {
	if strings.TrimSpace(s.Country) == "" {
		return defaultCountry
	}
	return strings.ToUpper(strings.TrimSpace(s.Country))
}

func (s Service) lease() time.Duration {
	if s.ProcessingLease <= 0 {
		return defaultProcessingLease
	}
	return s.ProcessingLease
}

func (s Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTx(ctx, fn)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) logger() *slog.Logger {
	return ResolveLogger(s.Logger)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
