package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ygbackend/contexts/content/media-service/adapters/memory"
	"ygbackend/contexts/content/media-service/adapters/signer"
	"ygbackend/contexts/content/media-service/domain/entities"
	domainerrors "ygbackend/contexts/content/media-service/domain/errors"
	"ygbackend/contexts/content/media-service/ports"
	contractsv1 "ygbackend/contracts/gen/events/v1"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("media-%d", s.next), nil
}

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

func (o *recordingOutbox) ofType(eventType string) []ports.EventEnvelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []ports.EventEnvelope
	for _, event := range o.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

const checksum = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

var (
	owner    = ports.Actor{UserID: "creator-1"}
	stranger = ports.Actor{UserID: "creator-2"}
	admin    = ports.Actor{UserID: "admin-1", IsAdmin: true}
)

func newTestService(quota int64) (Service, *fixedClock, *recordingOutbox) {
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)}
	outbox := &recordingOutbox{}
	return Service{
		Repo:        store,
		Idempotency: store,
		Outbox:      outbox,
		Tx:          store,
		Signer:      signer.NewHMACSigner("test-secret", "https://files.test"),
		Clock:       clock,
		IDGen:       &sequenceIDs{},
		QuotaBytes:  quota,
		UploadTTL:   time.Hour,
		DownloadTTL: 10 * time.Minute,
	}, clock, outbox
}

func initiate(t *testing.T, svc Service, key string, size int64) UploadTicket {
	t.Helper()
	ticket, err := svc.InitiateUpload(context.Background(), InitiateUploadInput{
		IdempotencyKey: key,
		OwnerID:        owner.UserID,
		Filename:       "cover.PNG",
		Title:          "Cover art",
		MimeType:       "image/png",
		SizeBytes:      size,
		Tags:           []string{"Art", "art"},
	})
	if err != nil {
		t.Fatalf("initiate upload: %v", err)
	}
	return ticket
}

func readyItem(t *testing.T, svc Service, key string) entities.MediaItem {
	t.Helper()
	ticket := initiate(t, svc, key, 1024)
	ctx := context.Background()
	if _, err := svc.ConfirmUpload(ctx, ticket.Media.MediaID, owner, checksum); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.StartProcessing(ctx, ticket.Media.MediaID); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	item, err := svc.CompleteProcessing(ctx, ticket.Media.MediaID)
	if err != nil {
		t.Fatalf("complete processing: %v", err)
	}
	return item
}

func TestInitiateUploadSignsURLAndReplays(t *testing.T) {
	svc, clock, _ := newTestService(0)
	ticket := initiate(t, svc, "idem-1", 2048)

	if ticket.Media.Status != entities.StatusPendingUpload {
		t.Fatalf("expected pending_upload, got %s", ticket.Media.Status)
	}
	if ticket.Media.Type != entities.MediaTypeImage {
		t.Fatalf("expected image type, got %s", ticket.Media.Type)
	}
	if ticket.Media.StorageKey != "media/creator-1/media-1.png" {
		t.Fatalf("unexpected storage key %q", ticket.Media.StorageKey)
	}
	if len(ticket.Media.Tags) != 1 || ticket.Media.Tags[0] != "art" {
		t.Fatalf("expected normalized tags, got %v", ticket.Media.Tags)
	}
	if !ticket.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", ticket.ExpiresAt)
	}
	if !strings.HasPrefix(ticket.UploadURL, "https://files.test/media/creator-1/media-1.png?") {
		t.Fatalf("unexpected upload url %q", ticket.UploadURL)
	}

	replay := initiate(t, svc, "idem-1", 2048)
	if !replay.Replayed || replay.Media.MediaID != ticket.Media.MediaID {
		t.Fatalf("expected replay of %s, got %+v", ticket.Media.MediaID, replay)
	}

	_, err := svc.InitiateUpload(context.Background(), InitiateUploadInput{
		IdempotencyKey: "idem-1",
		OwnerID:        owner.UserID,
		Filename:       "cover.png",
		Title:          "Different",
		MimeType:       "image/png",
		SizeBytes:      2048,
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestInitiateUploadValidation(t *testing.T) {
	svc, _, _ := newTestService(0)
	ctx := context.Background()
	base := InitiateUploadInput{
		IdempotencyKey: "k",
		OwnerID:        owner.UserID,
		Filename:       "clip.mp4",
		Title:          "Clip",
		MimeType:       "video/mp4",
		SizeBytes:      1024,
	}

	missingKey := base
	missingKey.IdempotencyKey = ""
	if _, err := svc.InitiateUpload(ctx, missingKey); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}

	badMime := base
	badMime.MimeType = "application/x-msdownload"
	if _, err := svc.InitiateUpload(ctx, badMime); !errors.Is(err, domainerrors.ErrUnsupportedMimeType) {
		t.Fatalf("expected unsupported mime, got %v", err)
	}

	tooLarge := base
	tooLarge.MimeType = "image/jpeg"
	tooLarge.SizeBytes = 25*entities.MB + 1
	if _, err := svc.InitiateUpload(ctx, tooLarge); !errors.Is(err, domainerrors.ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}

	empty := base
	empty.SizeBytes = 0
	if _, err := svc.InitiateUpload(ctx, empty); !errors.Is(err, domainerrors.ErrInvalidMediaInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInitiateUploadEnforcesQuotaAndReleasesOnDelete(t *testing.T) {
	svc, _, _ := newTestService(3000)
	ctx := context.Background()
	first := initiate(t, svc, "q-1", 2000)

	_, err := svc.InitiateUpload(ctx, InitiateUploadInput{
		IdempotencyKey: "q-2",
		OwnerID:        owner.UserID,
		Filename:       "second.png",
		Title:          "Second",
		MimeType:       "image/png",
		SizeBytes:      1500,
	})
	if !errors.Is(err, domainerrors.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}

	if err := svc.DeleteMedia(ctx, first.Media.MediaID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.InitiateUpload(ctx, InitiateUploadInput{
		IdempotencyKey: "q-3",
		OwnerID:        owner.UserID,
		Filename:       "second.png",
		Title:          "Second",
		MimeType:       "image/png",
		SizeBytes:      1500,
	}); err != nil {
		t.Fatalf("expected quota to be released, got %v", err)
	}
}

func TestConcurrentUploadsCannotOverrunQuota(t *testing.T) {
	svc, _, _ := newTestService(5000)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.InitiateUpload(context.Background(), InitiateUploadInput{
				IdempotencyKey: fmt.Sprintf("c-%d", i),
				OwnerID:        owner.UserID,
				Filename:       "f.png",
				Title:          "F",
				MimeType:       "image/png",
				SizeBytes:      1000,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domainerrors.ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if accepted != 5 || rejected != 3 {
		t.Fatalf("expected 5 accepted and 3 rejected, got %d and %d", accepted, rejected)
	}
}

func TestUploadLifecycleEmitsEvents(t *testing.T) {
	svc, _, outbox := newTestService(0)
	item := readyItem(t, svc, "life-1")

	if item.Status != entities.StatusReady || item.Checksum != checksum {
		t.Fatalf("unexpected ready item %+v", item)
	}
	if got := len(outbox.ofType(contractsv1.EventMediaUploaded)); got != 1 {
		t.Fatalf("expected one media.uploaded event, got %d", got)
	}
	ready := outbox.ofType(contractsv1.EventMediaReady)
	if len(ready) != 1 || ready[0].PartitionKey != item.MediaID {
		t.Fatalf("expected one media.ready keyed by media id, got %+v", ready)
	}

	if _, err := svc.ConfirmUpload(context.Background(), item.MediaID, owner, checksum); !errors.Is(err, domainerrors.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition on second confirm, got %v", err)
	}
}

func TestConfirmUploadChecksOwnerAndChecksum(t *testing.T) {
	svc, _, _ := newTestService(0)
	ticket := initiate(t, svc, "own-1", 100)
	ctx := context.Background()

	if _, err := svc.ConfirmUpload(ctx, ticket.Media.MediaID, stranger, checksum); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.ConfirmUpload(ctx, ticket.Media.MediaID, owner, "not-a-checksum"); !errors.Is(err, domainerrors.ErrInvalidMediaInput) {
		t.Fatalf("expected invalid checksum, got %v", err)
	}
	if _, err := svc.ConfirmUpload(ctx, ticket.Media.MediaID, admin, checksum); err != nil {
		t.Fatalf("admin confirm: %v", err)
	}
}

func TestFailProcessingRecordsReason(t *testing.T) {
	svc, _, outbox := newTestService(0)
	ticket := initiate(t, svc, "fail-1", 100)
	ctx := context.Background()
	if _, err := svc.ConfirmUpload(ctx, ticket.Media.MediaID, owner, checksum); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.StartProcessing(ctx, ticket.Media.MediaID); err != nil {
		t.Fatalf("start: %v", err)
	}
	item, err := svc.FailProcessing(ctx, ticket.Media.MediaID, "  ")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if item.Status != entities.StatusFailed || item.FailureReason != "processing failed" {
		t.Fatalf("unexpected failed item %+v", item)
	}
	if len(outbox.ofType(contractsv1.EventMediaFailed)) != 1 {
		t.Fatal("expected media.failed event")
	}
}

func TestDownloadURLRequiresReady(t *testing.T) {
	svc, clock, _ := newTestService(0)
	ctx := context.Background()
	pending := initiate(t, svc, "dl-1", 100)
	if _, err := svc.DownloadURL(ctx, pending.Media.MediaID, owner); !errors.Is(err, domainerrors.ErrMediaNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}

	item := readyItem(t, svc, "dl-2")
	link, err := svc.DownloadURL(ctx, item.MediaID, owner)
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if !link.ExpiresAt.Equal(clock.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", link.ExpiresAt)
	}
	if !strings.Contains(link.URL, "method=GET") {
		t.Fatalf("expected GET signature, got %q", link.URL)
	}
	if _, err := svc.DownloadURL(ctx, item.MediaID, stranger); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListMediaFiltersAndPages(t *testing.T) {
	svc, clock, _ := newTestService(0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		initiate(t, svc, fmt.Sprintf("list-%d", i), 100)
		clock.now = clock.now.Add(time.Minute)
	}
	readyItem(t, svc, "list-ready")

	page, hasMore, err := svc.ListMedia(ctx, owner, ports.MediaFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || !hasMore {
		t.Fatalf("expected 2 items with more, got %d more=%v", len(page), hasMore)
	}
	if page[0].MediaID != "media-4" {
		t.Fatalf("expected newest first, got %s", page[0].MediaID)
	}

	ready, _, err := svc.ListMedia(ctx, owner, ports.MediaFilter{Status: entities.StatusReady})
	if err != nil {
		t.Fatalf("list ready: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected one ready item, got %d", len(ready))
	}

	others, _, err := svc.ListMedia(ctx, stranger, ports.MediaFilter{OwnerID: owner.UserID})
	if err != nil {
		t.Fatalf("list as stranger: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("stranger must only see own library, got %d", len(others))
	}

	if _, _, err := svc.ListMedia(ctx, owner, ports.MediaFilter{Type: "hologram"}); !errors.Is(err, domainerrors.ErrInvalidMediaInput) {
		t.Fatalf("expected invalid filter, got %v", err)
	}
}

func TestUpdateMetadata(t *testing.T) {
	svc, _, _ := newTestService(0)
	ticket := initiate(t, svc, "meta-1", 100)
	title := "  New title "
	alt := "A cover"
	tags := []string{"One", "TWO"}

	item, err := svc.UpdateMetadata(context.Background(), MetadataInput{
		MediaID: ticket.Media.MediaID,
		Actor:   owner,
		Title:   &title,
		AltText: &alt,
		Tags:    &tags,
	})
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if item.Title != "New title" || item.AltText != alt || len(item.Tags) != 2 {
		t.Fatalf("unexpected item %+v", item)
	}

	long := strings.Repeat("a", entities.MaxAltTextLength+1)
	_, err = svc.UpdateMetadata(context.Background(), MetadataInput{MediaID: ticket.Media.MediaID, Actor: owner, AltText: &long})
	if !errors.Is(err, domainerrors.ErrInvalidMediaInput) {
		t.Fatalf("expected invalid alt text, got %v", err)
	}
}

func TestBulkDeleteReportsPerItem(t *testing.T) {
	svc, _, _ := newTestService(0)
	ctx := context.Background()
	mine := initiate(t, svc, "bulk-1", 100)

	results, err := svc.BulkDelete(ctx, []string{mine.Media.MediaID, "missing", mine.Media.MediaID}, owner)
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected duplicates collapsed, got %d results", len(results))
	}
	if !results[0].Deleted || results[1].Deleted {
		t.Fatalf("unexpected results %+v", results)
	}
	if !errors.Is(results[1].Error, domainerrors.ErrMediaNotFound) {
		t.Fatalf("expected not found for missing id, got %v", results[1].Error)
	}
	if _, err := svc.GetMedia(ctx, mine.Media.MediaID, owner); !errors.Is(err, domainerrors.ErrMediaNotFound) {
		t.Fatalf("deleted media must be hidden, got %v", err)
	}

	tooMany := make([]string, entities.MaxBulkItems+1)
	if _, err := svc.BulkDelete(ctx, tooMany, owner); !errors.Is(err, domainerrors.ErrTooManyItems) {
		t.Fatalf("expected too many items, got %v", err)
	}
}

func TestExpireStaleUploads(t *testing.T) {
	svc, clock, outbox := newTestService(0)
	stale := initiate(t, svc, "stale-1", 100)
	clock.now = clock.now.Add(30 * time.Minute)
	fresh := initiate(t, svc, "fresh-1", 100)
	clock.now = clock.now.Add(45 * time.Minute)

	expired, err := svc.ExpireStaleUploads(context.Background(), 10)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected one expired upload, got %d", expired)
	}
	item, err := svc.GetMedia(context.Background(), stale.Media.MediaID, owner)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if item.Status != entities.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	still, err := svc.GetMedia(context.Background(), fresh.Media.MediaID, owner)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if still.Status != entities.StatusPendingUpload {
		t.Fatalf("fresh upload must stay pending, got %s", still.Status)
	}
	if len(outbox.ofType(contractsv1.EventMediaFailed)) != 1 {
		t.Fatal("expected media.failed for the stale upload")
	}
}
