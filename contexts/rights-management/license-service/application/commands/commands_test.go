package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ygbackend/contexts/rights-management/license-service/adapters/memory"
	"ygbackend/contexts/rights-management/license-service/domain/entities"
	domainerrors "ygbackend/contexts/rights-management/license-service/domain/errors"
	"ygbackend/contexts/rights-management/license-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingOutbox struct {
	mu     sync.Mutex
	events []ports.EventEnvelope
}

func (o *recordingOutbox) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, envelope)
	return nil
}

func (o *recordingOutbox) count(eventType string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, event := range o.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

var (
	licensor = ports.Actor{UserID: "owner-1"}
	licensee = ports.Actor{UserID: "brand-1"}
	admin    = ports.Actor{UserID: "admin-1", IsAdmin: true}
	now      = time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	store      *memory.Store
	outbox     *recordingOutbox
	create     CreateLicenseUseCase
	transition TransitionLicenseUseCase
	propose    ProposeAmendmentUseCase
	decide     DecideAmendmentUseCase
	renew      RenewLicenseUseCase
}

func newFixture() fixture {
	store := memory.NewStore()
	outbox := &recordingOutbox{}
	clock := fixedClock{now: now}
	return fixture{
		store:      store,
		outbox:     outbox,
		create:     CreateLicenseUseCase{Licenses: store, Idempotency: store, Tx: store, Clock: clock, IDGenerator: store},
		transition: TransitionLicenseUseCase{Licenses: store, Outbox: outbox, Tx: store, Clock: clock, IDGenerator: store},
		propose:    ProposeAmendmentUseCase{Licenses: store, Amendments: store, Tx: store, Clock: clock, IDGenerator: store},
		decide:     DecideAmendmentUseCase{Licenses: store, Amendments: store, Outbox: outbox, Tx: store, Clock: clock, IDGenerator: store},
		renew:      RenewLicenseUseCase{Licenses: store, Idempotency: store, Tx: store, Clock: clock, IDGenerator: store},
	}
}

func createCommand(key string, exclusive bool, territories ...string) CreateLicenseCommand {
	return CreateLicenseCommand{
		IdempotencyKey: key,
		Actor:          licensee,
		IPAssetID:      "asset-1",
		LicensorID:     licensor.UserID,
		LicenseeID:     licensee.UserID,
		Media:          []string{"Social"},
		Territories:    territories,
		Exclusive:      exclusive,
		StartDate:      now,
		EndDate:        now.AddDate(0, 6, 0),
		FeeCents:       50000,
		Currency:       "USD",
		RevShareBps:    1000,
	}
}

func (f fixture) activate(t *testing.T, cmd CreateLicenseCommand) entities.License {
	t.Helper()
	ctx := context.Background()
	created, err := f.create.Execute(ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: created.License.LicenseID, Actor: licensee, Action: entities.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	active, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: created.License.LicenseID, Actor: licensor, Action: entities.ActionApprove})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return active
}

func TestCreateLicenseIdempotentAndNormalized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.create.Execute(ctx, createCommand("lic-key", true, "us"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.License.Currency != "usd" || first.License.Scope.Territories[0] != "US" || first.License.Scope.Media[0] != "social" {
		t.Fatalf("expected normalized license, got %+v", first.License)
	}
	second, err := f.create.Execute(ctx, createCommand("lic-key", true, "us"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.License.LicenseID != first.License.LicenseID {
		t.Fatalf("expected replay of %s", first.License.LicenseID)
	}
	if _, err := f.create.Execute(ctx, createCommand("lic-key", false, "us")); !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
	if _, err := f.create.Execute(ctx, createCommand("", true, "us")); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}
}

func TestExclusivityConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.activate(t, createCommand("a", true, "US", "CA"))

	if _, err := f.create.Execute(ctx, createCommand("b", false, "CA")); !errors.Is(err, domainerrors.ErrExclusivityConflict) {
		t.Fatalf("expected conflict on shared territory, got %v", err)
	}
	if _, err := f.create.Execute(ctx, createCommand("c", false, "GLOBAL")); !errors.Is(err, domainerrors.ErrExclusivityConflict) {
		t.Fatalf("expected conflict on GLOBAL, got %v", err)
	}
	if _, err := f.create.Execute(ctx, createCommand("d", true, "MX")); err != nil {
		t.Fatalf("expected disjoint territory to succeed, got %v", err)
	}
}

func TestTransitionsEmitEventsAndEnforceRoles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.create.Execute(ctx, createCommand("k", false, "US"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.License.LicenseID

	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: licensee, Action: entities.ActionApprove}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected licensee approval to be forbidden, got %v", err)
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: licensor, Action: entities.ActionApprove}); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected draft approval to fail, got %v", err)
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: licensee, Action: entities.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: licensor, Action: entities.ActionReject}); !errors.Is(err, domainerrors.ErrInvalidLicenseInput) {
		t.Fatalf("expected reject without reason to fail, got %v", err)
	}
	rejected, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: licensor, Action: entities.ActionReject, Reason: "fee too low"})
	if err != nil || rejected.Status != entities.LicenseStatusDraft {
		t.Fatalf("expected reject back to draft, got %s %v", rejected.Status, err)
	}

	active := f.activate(t, createCommand("k2", false, "DE"))
	if active.SignedAt == nil || f.outbox.count(contractsv1.EventLicenseActivated) != 1 {
		t.Fatalf("expected signed license and activation event")
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: active.LicenseID, Actor: licensor, Action: entities.ActionSuspend}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected suspend to be admin only, got %v", err)
	}
	if _, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: active.LicenseID, Actor: admin, Action: entities.ActionSuspend}); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	terminated, err := f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: active.LicenseID, Actor: licensee, Action: entities.ActionTerminate, Reason: "breach"})
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.TerminatedAt == nil || terminated.TerminationReason != "breach" || f.outbox.count(contractsv1.EventLicenseTerminated) != 1 {
		t.Fatalf("unexpected termination: %+v", terminated)
	}
}

func TestAmendmentVersionConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	active := f.activate(t, createCommand("k", false, "US"))

	fee := int64(75000)
	share := 2000
	first, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: active.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{FeeCents: &fee}})
	if err != nil {
		t.Fatalf("propose first: %v", err)
	}
	second, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: active.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{RevShareBps: &share}})
	if err != nil {
		t.Fatalf("propose second: %v", err)
	}
	if first.BaseVersion != 1 || second.BaseVersion != 1 {
		t.Fatalf("expected both proposals on version 1")
	}

	if _, err := f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: first.AmendmentID, Actor: licensee, Approve: true}); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected proposer approval to be forbidden, got %v", err)
	}
	result, err := f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: first.AmendmentID, Actor: licensor, Approve: true})
	if err != nil {
		t.Fatalf("approve first: %v", err)
	}
	if result.License.Version != 2 || result.License.FeeCents != 75000 {
		t.Fatalf("unexpected amended license: %+v", result.License)
	}
	if _, err := f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: second.AmendmentID, Actor: licensor, Approve: true}); !errors.Is(err, domainerrors.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if _, err := f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: first.AmendmentID, Actor: licensor, Approve: true}); !errors.Is(err, domainerrors.ErrAmendmentDecided) {
		t.Fatalf("expected decided amendment, got %v", err)
	}
	if f.outbox.count(contractsv1.EventLicenseAmended) != 1 {
		t.Fatalf("expected one amended event")
	}
}

func TestConcurrentAmendmentApprovalsAdmitOne(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	active := f.activate(t, createCommand("k", false, "US"))

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		fee := int64(60000 + i)
		amendment, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: active.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{FeeCents: &fee}})
		if err != nil {
			t.Fatalf("propose: %v", err)
		}
		ids = append(ids, amendment.AmendmentID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: id, Actor: licensor, Approve: true})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domainerrors.ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicts != 3 {
		t.Fatalf("expected 1 success and 3 conflicts, got %d and %d", succeeded, conflicts)
	}
}

func TestRenewDraftsFollowOn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	active := f.activate(t, createCommand("k", true, "US"))

	result, err := f.renew.Execute(ctx, RenewLicenseCommand{IdempotencyKey: "renew-1", LicenseID: active.LicenseID, Actor: licensee, FeeAdjustmentBps: 500})
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	renewal := result.License
	if renewal.Status != entities.LicenseStatusDraft || renewal.ParentLicenseID != active.LicenseID {
		t.Fatalf("unexpected renewal: %+v", renewal)
	}
	if !renewal.StartDate.Equal(active.EndDate) || renewal.Duration() != active.Duration() {
		t.Fatalf("expected renewal to continue the same term")
	}
	if renewal.FeeCents != 52500 {
		t.Fatalf("expected adjusted fee 52500, got %d", renewal.FeeCents)
	}
	if _, err := f.renew.Execute(ctx, RenewLicenseCommand{IdempotencyKey: "renew-2", LicenseID: active.LicenseID, Actor: licensee, FeeAdjustmentBps: 20000}); !errors.Is(err, domainerrors.ErrInvalidLicenseInput) {
		t.Fatalf("expected adjustment bounds check, got %v", err)
	}
	if _, err := f.renew.Execute(ctx, RenewLicenseCommand{IdempotencyKey: "renew-3", LicenseID: renewal.LicenseID, Actor: licensee}); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected draft renewal to fail, got %v", err)
	}
}

func TestExclusivityHeldAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	transition := func(f fixture, id string, actor ports.Actor, action entities.Action) (entities.License, error) {
		return f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: id, Actor: actor, Action: action})
	}
	mustCreate := func(t *testing.T, f fixture, cmd CreateLicenseCommand) entities.License {
		t.Helper()
		result, err := f.create.Execute(ctx, cmd)
		if err != nil {
			t.Fatalf("create %s: %v", cmd.IdempotencyKey, err)
		}
		return result.License
	}
	mustRun := func(t *testing.T, step string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", step, err)
		}
	}

	cases := []struct {
		name       string
		run        func(t *testing.T, f fixture) (string, error)
		wantErr    error
		wantStatus entities.LicenseStatus
	}{
		{
			name: "reinstate after a competing grant was approved",
			run: func(t *testing.T, f fixture) (string, error) {
				a := f.activate(t, createCommand("a", true, "US"))
				_, err := transition(f, a.LicenseID, admin, entities.ActionSuspend)
				mustRun(t, "suspend", err)
				f.activate(t, createCommand("b", true, "US"))
				_, err = transition(f, a.LicenseID, admin, entities.ActionReinstate)
				return a.LicenseID, err
			},
			wantErr:    domainerrors.ErrExclusivityConflict,
			wantStatus: entities.LicenseStatusSuspended,
		},
		{
			name: "reinstate with the territory still free",
			run: func(t *testing.T, f fixture) (string, error) {
				a := f.activate(t, createCommand("a", true, "US"))
				_, err := transition(f, a.LicenseID, admin, entities.ActionSuspend)
				mustRun(t, "suspend", err)
				f.activate(t, createCommand("b", true, "CA"))
				_, err = transition(f, a.LicenseID, admin, entities.ActionReinstate)
				return a.LicenseID, err
			},
			wantStatus: entities.LicenseStatusActive,
		},
		{
			name: "submit while a conflicting draft is pending",
			run: func(t *testing.T, f fixture) (string, error) {
				a := mustCreate(t, f, createCommand("a", true, "US"))
				b := mustCreate(t, f, createCommand("b", true, "US"))
				_, err := transition(f, a.LicenseID, licensee, entities.ActionSubmit)
				mustRun(t, "submit a", err)
				_, err = transition(f, b.LicenseID, licensee, entities.ActionSubmit)
				return b.LicenseID, err
			},
			wantErr:    domainerrors.ErrExclusivityConflict,
			wantStatus: entities.LicenseStatusDraft,
		},
		{
			name: "approve the first pending of two drafts",
			run: func(t *testing.T, f fixture) (string, error) {
				a := mustCreate(t, f, createCommand("a", true, "US"))
				mustCreate(t, f, createCommand("b", true, "US"))
				_, err := transition(f, a.LicenseID, licensee, entities.ActionSubmit)
				mustRun(t, "submit a", err)
				_, err = transition(f, a.LicenseID, licensor, entities.ActionApprove)
				return a.LicenseID, err
			},
			wantStatus: entities.LicenseStatusActive,
		},
		{
			name: "resubmit after reject while a competitor went active",
			run: func(t *testing.T, f fixture) (string, error) {
				a := mustCreate(t, f, createCommand("a", true, "US"))
				_, err := transition(f, a.LicenseID, licensee, entities.ActionSubmit)
				mustRun(t, "submit a", err)
				_, err = f.transition.Execute(ctx, TransitionLicenseCommand{LicenseID: a.LicenseID, Actor: licensor, Action: entities.ActionReject, Reason: "terms"})
				mustRun(t, "reject a", err)
				f.activate(t, createCommand("b", true, "US"))
				_, err = transition(f, a.LicenseID, licensee, entities.ActionSubmit)
				return a.LicenseID, err
			},
			wantErr:    domainerrors.ErrExclusivityConflict,
			wantStatus: entities.LicenseStatusDraft,
		},
		{
			name: "amendment adds a territory granted while suspended",
			run: func(t *testing.T, f fixture) (string, error) {
				a := f.activate(t, createCommand("a", true, "US"))
				amendment, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: a.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{Territories: []string{"US", "CA"}}})
				mustRun(t, "propose", err)
				_, err = transition(f, a.LicenseID, admin, entities.ActionSuspend)
				mustRun(t, "suspend", err)
				f.activate(t, createCommand("b", true, "CA"))
				_, err = transition(f, a.LicenseID, admin, entities.ActionReinstate)
				mustRun(t, "reinstate", err)
				_, err = f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: amendment.AmendmentID, Actor: licensor, Approve: true})
				return a.LicenseID, err
			},
			wantErr:    domainerrors.ErrExclusivityConflict,
			wantStatus: entities.LicenseStatusActive,
		},
		{
			name: "amendment extends the term into a follow-on grant",
			run: func(t *testing.T, f fixture) (string, error) {
				a := f.activate(t, createCommand("a", true, "US"))
				next := createCommand("b", true, "US")
				next.StartDate = a.EndDate
				next.EndDate = a.EndDate.AddDate(0, 6, 0)
				f.activate(t, next)
				end := a.EndDate.AddDate(0, 1, 0)
				amendment, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: a.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{EndDate: &end}})
				mustRun(t, "propose", err)
				_, err = f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: amendment.AmendmentID, Actor: licensor, Approve: true})
				return a.LicenseID, err
			},
			wantErr:    domainerrors.ErrExclusivityConflict,
			wantStatus: entities.LicenseStatusActive,
		},
		{
			name: "amendment on a suspended license",
			run: func(t *testing.T, f fixture) (string, error) {
				a := f.activate(t, createCommand("a", true, "US"))
				amendment, err := f.propose.Execute(ctx, ProposeAmendmentCommand{LicenseID: a.LicenseID, Actor: licensee, Changes: entities.AmendmentChanges{Territories: []string{"US", "MX"}}})
				mustRun(t, "propose", err)
				_, err = transition(f, a.LicenseID, admin, entities.ActionSuspend)
				mustRun(t, "suspend", err)
				_, err = f.decide.Execute(ctx, DecideAmendmentCommand{AmendmentID: amendment.AmendmentID, Actor: licensor, Approve: true})
				return a.LicenseID, err
			},
			wantErr:    domainerrors.ErrInvalidStateTransition,
			wantStatus: entities.LicenseStatusSuspended,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			id, err := tc.run(t, f)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			got, err := f.store.GetLicense(ctx, id)
			if err != nil {
				t.Fatalf("get license: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, got.Status)
			}
			assertNoOverlappingExclusiveGrants(t, f)
		})
	}
}

func assertNoOverlappingExclusiveGrants(t *testing.T, f fixture) {
	t.Helper()
	blocking, err := f.store.ListBlockingLicenses(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("list blocking: %v", err)
	}
	for i := range blocking {
		for j := i + 1; j < len(blocking); j++ {
			if blocking[i].ConflictsWith(blocking[j]) {
				t.Fatalf("licenses %s and %s both hold the same exclusive grant", blocking[i].LicenseID, blocking[j].LicenseID)
			}
		}
	}
}
