package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"marketqa/internal/domain"
	applog "marketqa/internal/log"
	"marketqa/internal/repos"
	"marketqa/internal/validate"
)

// ErrNotOwner is returned when a seller operates on another seller's record.
var ErrNotOwner = errors.New("record not owned by seller")

// NewListing carries the seller-supplied attributes of a submission.
type NewListing struct {
	Title       string
	Description string
	Category    string
	Price       float64
	Stock       int
	ImagesJSON  string
}

// TransitionEngine validates and applies one QA state transition at a
// time against the authoritative record store. All status writes in the
// system pass through it.
type TransitionEngine struct {
	Store   RecordStore
	Notify  Notifier
	Timeout time.Duration
}

func NewTransitionEngine(store RecordStore, notify Notifier, timeout time.Duration) *TransitionEngine {
	return &TransitionEngine{Store: store, Notify: notify, Timeout: timeout}
}

func (e *TransitionEngine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout > 0 {
		return context.WithTimeout(ctx, e.Timeout)
	}
	return ctx, func() {}
}

// load fetches the record and checks the operation's source state. Both
// ValidationError and TransitionError fire before any write.
func (e *TransitionEngine) load(ctx context.Context, op, id string, from ...domain.Status) (*domain.QARecord, error) {
	rec, err := e.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	for _, s := range from {
		if rec.Status == s {
			return rec, nil
		}
	}
	return nil, &domain.TransitionError{Op: op, From: rec.Status}
}

func (e *TransitionEngine) apply(ctx context.Context, op, id string, from domain.Status, patch repos.TransitionPatch) (*domain.QARecord, error) {
	rec, err := e.Store.ApplyTransition(ctx, id, from, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	return rec, nil
}

// notify fires the side channel exactly once per successful transition.
// A failure is logged and swallowed; the transition stands.
func (e *TransitionEngine) notify(kind string, fn func() error) {
	if err := fn(); err != nil {
		nerr := &domain.NotificationError{Kind: kind, Err: err}
		applog.Error(nil, "qa.notify.fail", nerr, map[string]any{"kind": kind})
	}
}

// Submit creates the Listing and its QA record in PENDING_DIGITAL_REVIEW.
func (e *TransitionEngine) Submit(ctx context.Context, sellerID string, in NewListing) (*domain.QARecord, error) {
	title, ok := validate.Title(in.Title)
	if !ok {
		return nil, &domain.ValidationError{Field: "title", Reason: "empty or too long"}
	}
	if !validate.Price(in.Price) {
		return nil, &domain.ValidationError{Field: "price", Reason: "out of range"}
	}
	if in.Stock < 0 {
		return nil, &domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.Store.Create(ctx, domain.Listing{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Title:       title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		ImagesJSON:  in.ImagesJSON,
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "submit", Err: err}
	}
	return rec, nil
}

// ApproveForSample passes the digital review and asks the seller for a
// physical sample. The note is audit-only and not persisted on the record.
func (e *TransitionEngine) ApproveForSample(ctx context.Context, moderatorID, id, note string) (*domain.QARecord, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "approveForSample", id, domain.StatusPendingDigitalReview)
	if err != nil {
		return nil, err
	}
	out, err := e.apply(ctx, "approveForSample", id, rec.Status, repos.TransitionPatch{
		To:        domain.StatusWaitingForSample,
		Set:       map[string]any{"digital_reviewer_id": moderatorID},
		StampCols: []string{"digital_reviewed_at"},
	})
	if err != nil {
		return nil, err
	}
	e.notify(KindSampleRequest, func() error {
		return e.Notify.NotifySampleRequest(ctx, out.SellerID, out.ID)
	})
	return out, nil
}

// RejectDigital fails the digital review with a mandatory reason.
func (e *TransitionEngine) RejectDigital(ctx context.Context, moderatorID, id, reason string) (*domain.QARecord, error) {
	reason, ok := validate.Reason(reason)
	if !ok {
		return nil, &domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "rejectDigital", id, domain.StatusPendingDigitalReview)
	if err != nil {
		return nil, err
	}
	out, err := e.apply(ctx, "rejectDigital", id, rec.Status, repos.TransitionPatch{
		To: domain.StatusRejected,
		Set: map[string]any{
			"rejection_reason":    reason,
			"rejection_stage":     domain.StageDigital,
			"digital_reviewer_id": moderatorID,
		},
		StampCols: []string{"digital_reviewed_at", "rejected_at"},
	})
	if err != nil {
		return nil, err
	}
	e.notify(KindProductRejected, func() error {
		return e.Notify.NotifyProductRejected(ctx, out.SellerID, out.ID, reason, domain.StageDigital)
	})
	return out, nil
}

// SubmitSample records the seller's physical sample shipment and moves the
// record into quality review.
func (e *TransitionEngine) SubmitSample(ctx context.Context, sellerID, id, method, address, notes string) (*domain.QARecord, error) {
	method, ok := validate.LogisticsMethod(method)
	if !ok {
		return nil, &domain.ValidationError{Field: "logistics_method", Reason: "unrecognized method"}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "submitSample", id, domain.StatusWaitingForSample)
	if err != nil {
		return nil, err
	}
	if rec.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	return e.apply(ctx, "submitSample", id, rec.Status, repos.TransitionPatch{
		To: domain.StatusInQualityReview,
		Set: map[string]any{
			"logistics_method":  method,
			"logistics_address": address,
			"logistics_notes":   notes,
		},
		StampCols: []string{"sample_submitted_at"},
	})
}

// PassQuality verifies the physical sample and publishes the listing.
func (e *TransitionEngine) PassQuality(ctx context.Context, moderatorID, id, note string) (*domain.QARecord, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "passQuality", id, domain.StatusInQualityReview)
	if err != nil {
		return nil, err
	}
	out, err := e.apply(ctx, "passQuality", id, rec.Status, repos.TransitionPatch{
		To:        domain.StatusActiveVerified,
		Set:       map[string]any{"quality_reviewer_id": moderatorID},
		StampCols: []string{"quality_reviewed_at"},
	})
	if err != nil {
		return nil, err
	}
	e.notify(KindProductApproved, func() error {
		return e.Notify.NotifyProductApproved(ctx, out.SellerID, out.ID)
	})
	return out, nil
}

// FailQuality fails the physical inspection with a mandatory reason.
func (e *TransitionEngine) FailQuality(ctx context.Context, moderatorID, id, reason string) (*domain.QARecord, error) {
	reason, ok := validate.Reason(reason)
	if !ok {
		return nil, &domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "failQuality", id, domain.StatusInQualityReview)
	if err != nil {
		return nil, err
	}
	out, err := e.apply(ctx, "failQuality", id, rec.Status, repos.TransitionPatch{
		To: domain.StatusRejected,
		Set: map[string]any{
			"rejection_reason":    reason,
			"rejection_stage":     domain.StagePhysical,
			"quality_reviewer_id": moderatorID,
		},
		StampCols: []string{"quality_reviewed_at", "rejected_at"},
	})
	if err != nil {
		return nil, err
	}
	e.notify(KindProductRejected, func() error {
		return e.Notify.NotifyProductRejected(ctx, out.SellerID, out.ID, reason, domain.StagePhysical)
	})
	return out, nil
}

// RequestRevision parks any non-terminal record for seller rework.
func (e *TransitionEngine) RequestRevision(ctx context.Context, moderatorID, id, reason string) (*domain.QARecord, error) {
	reason, ok := validate.Reason(reason)
	if !ok {
		return nil, &domain.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	rec, err := e.load(ctx, "requestRevision", id,
		domain.StatusPendingDigitalReview, domain.StatusWaitingForSample, domain.StatusInQualityReview)
	if err != nil {
		return nil, err
	}
	out, err := e.apply(ctx, "requestRevision", id, rec.Status, repos.TransitionPatch{
		To:        domain.StatusForRevision,
		Set:       map[string]any{"revision_reason": reason},
		StampCols: []string{"revision_requested_at"},
	})
	if err != nil {
		return nil, err
	}
	e.notify(KindRevisionRequested, func() error {
		return e.Notify.NotifyRevisionRequested(ctx, out.SellerID, out.ID, reason)
	})
	return out, nil
}
