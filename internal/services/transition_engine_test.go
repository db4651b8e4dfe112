package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"marketqa/internal/domain"
	"marketqa/internal/repos"
	"marketqa/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	schema := `
	CREATE TABLE listings(id TEXT PRIMARY KEY, seller_id TEXT, title TEXT, description TEXT,
	  category TEXT, price NUMERIC, stock INTEGER, images_json TEXT,
	  approval TEXT DEFAULT 'pending', created_at TEXT DEFAULT CURRENT_TIMESTAMP, updated_at TEXT);
	CREATE TABLE qa_records(id TEXT PRIMARY KEY, seller_id TEXT, status TEXT,
	  logistics_method TEXT, logistics_address TEXT, logistics_notes TEXT,
	  rejection_reason TEXT, rejection_stage TEXT, revision_reason TEXT,
	  submitted_at TEXT DEFAULT CURRENT_TIMESTAMP, digital_reviewed_at TEXT,
	  sample_submitted_at TEXT, quality_reviewed_at TEXT, rejected_at TEXT,
	  revision_requested_at TEXT, digital_reviewer_id TEXT, quality_reviewer_id TEXT);
	CREATE TABLE notifications(id TEXT PRIMARY KEY, seller_id TEXT, listing_id TEXT,
	  kind TEXT, reason TEXT, stage TEXT, created_at TEXT DEFAULT CURRENT_TIMESTAMP);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	return db
}

// fakeNotifier counts side-channel calls per kind.
type fakeNotifier struct {
	mu             sync.Mutex
	sampleRequests int
	approved       int
	rejected       int
	revisions      int
	lastReason     string
	lastStage      string
	fail           bool
}

func (f *fakeNotifier) bump(n *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("channel down")
	}
	*n++
	return nil
}

func (f *fakeNotifier) NotifySampleRequest(ctx context.Context, sellerID, listingID string) error {
	return f.bump(&f.sampleRequests)
}
func (f *fakeNotifier) NotifyProductApproved(ctx context.Context, sellerID, listingID string) error {
	return f.bump(&f.approved)
}
func (f *fakeNotifier) NotifyProductRejected(ctx context.Context, sellerID, listingID, reason, stage string) error {
	f.mu.Lock()
	f.lastReason, f.lastStage = reason, stage
	f.mu.Unlock()
	return f.bump(&f.rejected)
}
func (f *fakeNotifier) NotifyRevisionRequested(ctx context.Context, sellerID, listingID, reason string) error {
	f.mu.Lock()
	f.lastReason = reason
	f.mu.Unlock()
	return f.bump(&f.revisions)
}

func newEngine(t *testing.T) (*services.TransitionEngine, *fakeNotifier, *sqlx.DB) {
	t.Helper()
	db := memdb(t)
	notif := &fakeNotifier{}
	eng := services.NewTransitionEngine(repos.NewQARecordRepo(db), notif, 0)
	return eng, notif, db
}

func submitOne(t *testing.T, eng *services.TransitionEngine, sellerID string) *domain.QARecord {
	t.Helper()
	rec, err := eng.Submit(context.Background(), sellerID, services.NewListing{
		Title: "Handwoven Espadrilles", Price: 899, Stock: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func approvalOf(t *testing.T, db *sqlx.DB, id string) string {
	t.Helper()
	var a string
	if err := db.Get(&a, `SELECT approval FROM listings WHERE id=?`, id); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestSubmitCreatesPendingRecord(t *testing.T) {
	eng, _, db := newEngine(t)
	rec := submitOne(t, eng, "s-maria")

	if rec.Status != domain.StatusPendingDigitalReview {
		t.Fatalf("want PENDING_DIGITAL_REVIEW, got %s", rec.Status)
	}
	if rec.SubmittedAt == "" {
		t.Fatal("submittedAt not stamped")
	}
	if got := approvalOf(t, db, rec.ID); got != "pending" {
		t.Fatalf("want listing approval pending, got %s", got)
	}
}

func TestSubmitRejectsBadAttributes(t *testing.T) {
	eng, _, _ := newEngine(t)
	_, err := eng.Submit(context.Background(), "s-maria", services.NewListing{Title: "   ", Price: 10})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

// Scenario: moderator approves a pending record for sample submission.
func TestApproveForSample(t *testing.T) {
	eng, notif, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")

	out, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, "please submit sample")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusWaitingForSample {
		t.Fatalf("want WAITING_FOR_SAMPLE, got %s", out.Status)
	}
	if out.DigitalReviewedAt == "" {
		t.Fatal("digitalReviewedAt not stamped")
	}
	if out.DigitalReviewerID != "m-ana" {
		t.Fatalf("want reviewer m-ana, got %q", out.DigitalReviewerID)
	}
	if notif.sampleRequests != 1 {
		t.Fatalf("want exactly one sample request notification, got %d", notif.sampleRequests)
	}
}

func TestApproveForSampleFromWrongState(t *testing.T) {
	eng, notif, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")

	first, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = eng.ApproveForSample(context.Background(), "m-ana", rec.ID, "")
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("want TransitionError, got %v", err)
	}
	if terr.From != domain.StatusWaitingForSample {
		t.Fatalf("want From=WAITING_FOR_SAMPLE, got %s", terr.From)
	}

	// No re-applied timestamp, no re-fired notification.
	cur, err := eng.Store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != domain.StatusWaitingForSample || cur.DigitalReviewedAt != first.DigitalReviewedAt {
		t.Fatalf("record mutated by illegal transition: %+v", cur)
	}
	if notif.sampleRequests != 1 {
		t.Fatalf("notification re-fired: %d", notif.sampleRequests)
	}
}

func TestRejectDigitalRequiresReason(t *testing.T) {
	eng, notif, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := eng.RejectDigital(context.Background(), "m-ana", rec.ID, reason)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("reason %q: want ValidationError, got %v", reason, err)
		}
	}

	cur, err := eng.Store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != domain.StatusPendingDigitalReview {
		t.Fatalf("status changed by rejected validation: %s", cur.Status)
	}
	if notif.rejected != 0 {
		t.Fatalf("notification fired on validation failure")
	}
}

func TestRejectDigitalSetsStage(t *testing.T) {
	eng, notif, db := newEngine(t)
	rec := submitOne(t, eng, "s-maria")

	out, err := eng.RejectDigital(context.Background(), "m-ana", rec.ID, "blurry photos")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusRejected || out.RejectionStage != domain.StageDigital || out.RejectionReason != "blurry photos" {
		t.Fatalf("bad rejection record: %+v", out)
	}
	if got := approvalOf(t, db, rec.ID); got != "rejected" {
		t.Fatalf("want listing approval rejected, got %s", got)
	}
	if notif.rejected != 1 || notif.lastStage != domain.StageDigital {
		t.Fatalf("want one digital rejection notification, got %d/%s", notif.rejected, notif.lastStage)
	}
}

func TestSubmitSampleValidatesMethod(t *testing.T) {
	eng, _, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	_, err := eng.SubmitSample(context.Background(), "s-maria", rec.ID, "carrier_pigeon", "", "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestSubmitSampleOwnership(t *testing.T) {
	eng, _, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	_, err := eng.SubmitSample(context.Background(), "s-jun", rec.ID, domain.LogisticsMeetup, "", "")
	if !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}
}

func TestSubmitSampleMovesToQualityReview(t *testing.T) {
	eng, _, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	out, err := eng.SubmitSample(context.Background(), "s-maria", rec.ID, domain.LogisticsDropOffCourier, "12 Mabini St", "fragile")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusInQualityReview || out.LogisticsMethod != domain.LogisticsDropOffCourier {
		t.Fatalf("bad record after sample: %+v", out)
	}
	if out.SampleSubmittedAt == "" {
		t.Fatal("sampleSubmittedAt not stamped")
	}
}

// Scenario: record in quality review fails the physical inspection.
func TestFailQuality(t *testing.T) {
	eng, notif, db := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitSample(context.Background(), "s-maria", rec.ID, domain.LogisticsCompanyPickup, "", ""); err != nil {
		t.Fatal(err)
	}

	out, err := eng.FailQuality(context.Background(), "m-ana", rec.ID, "material defect")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusRejected || out.RejectionStage != domain.StagePhysical || out.RejectionReason != "material defect" {
		t.Fatalf("bad rejection record: %+v", out)
	}
	if got := approvalOf(t, db, rec.ID); got != "rejected" {
		t.Fatalf("want listing approval rejected, got %s", got)
	}
	if notif.rejected != 1 || notif.lastStage != domain.StagePhysical {
		t.Fatalf("want one physical rejection notification, got %d/%s", notif.rejected, notif.lastStage)
	}
}

func TestPassQualityPublishes(t *testing.T) {
	eng, notif, db := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitSample(context.Background(), "s-maria", rec.ID, domain.LogisticsMeetup, "", ""); err != nil {
		t.Fatal(err)
	}

	out, err := eng.PassQuality(context.Background(), "m-ana", rec.ID, "looks great")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusActiveVerified || out.QualityReviewedAt == "" || out.QualityReviewerID != "m-ana" {
		t.Fatalf("bad verified record: %+v", out)
	}
	if got := approvalOf(t, db, rec.ID); got != "approved" {
		t.Fatalf("want listing approval approved, got %s", got)
	}
	if notif.approved != 1 {
		t.Fatalf("want one approval notification, got %d", notif.approved)
	}
}

func TestRequestRevisionFromAnyNonTerminal(t *testing.T) {
	eng, notif, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	out, err := eng.RequestRevision(context.Background(), "m-ana", rec.ID, "retake the photos")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != domain.StatusForRevision || out.RevisionReason != "retake the photos" {
		t.Fatalf("bad revision record: %+v", out)
	}
	if notif.revisions != 1 {
		t.Fatalf("want one revision notification, got %d", notif.revisions)
	}

	// FOR_REVISION is terminal-pending-reopen: no further transitions.
	_, err = eng.RequestRevision(context.Background(), "m-ana", rec.ID, "again")
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("want TransitionError from FOR_REVISION, got %v", err)
	}
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	eng, notif, _ := newEngine(t)
	rec := submitOne(t, eng, "s-maria")
	notif.fail = true

	out, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, "")
	if err != nil {
		t.Fatalf("transition must survive a notifier failure: %v", err)
	}
	if out.Status != domain.StatusWaitingForSample {
		t.Fatalf("want WAITING_FOR_SAMPLE, got %s", out.Status)
	}
}

// staleStore reports a record as pending but rejects the guarded write,
// as when a concurrent moderator wins the race between read and write.
type staleStore struct {
	services.RecordStore
	rec *domain.QARecord
}

func (s *staleStore) Get(ctx context.Context, id string) (*domain.QARecord, error) {
	return s.rec, nil
}

func (s *staleStore) ApplyTransition(ctx context.Context, id string, from domain.Status, patch repos.TransitionPatch) (*domain.QARecord, error) {
	return nil, repos.ErrStale
}

func TestLostRaceSurfacesPersistenceError(t *testing.T) {
	store := &staleStore{rec: &domain.QARecord{ID: "lst-1", SellerID: "s-maria", Status: domain.StatusPendingDigitalReview}}
	eng := services.NewTransitionEngine(store, &fakeNotifier{}, 0)

	_, err := eng.ApproveForSample(context.Background(), "m-ana", "lst-1", "")
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("want PersistenceError, got %v", err)
	}
	if !errors.Is(err, repos.ErrStale) {
		t.Fatalf("want wrapped ErrStale, got %v", err)
	}
}

func TestOutboxNotifierWritesRows(t *testing.T) {
	db := memdb(t)
	notifRepo := repos.NewNotificationRepo(db)
	eng := services.NewTransitionEngine(repos.NewQARecordRepo(db), services.NewOutboxNotifier(notifRepo), 0)

	rec := submitOne(t, eng, "s-maria")
	if _, err := eng.ApproveForSample(context.Background(), "m-ana", rec.ID, ""); err != nil {
		t.Fatal(err)
	}

	rows, err := notifRepo.ListBySeller(context.Background(), "s-maria", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Kind != services.KindSampleRequest || rows[0].ListingID != rec.ID {
		t.Fatalf("bad outbox rows: %+v", rows)
	}
}
