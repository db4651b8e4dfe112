package services

import (
	"context"
	"sync"

	"marketqa/internal/domain"
)

// Scope selects which records a materializer mirrors. The zero SellerID
// means the moderator scope: every record in the store.
type Scope struct {
	SellerID string
}

func ModeratorScope() Scope { return Scope{} }

func SellerScope(sellerID string) Scope { return Scope{SellerID: sellerID} }

// Buckets is a pure partition of a record set by current status. The
// union of the six buckets equals the fetched set; no record appears
// twice. FOR_REVISION records get their own bucket, never dropped.
type Buckets struct {
	PendingDigitalReview []domain.QARecord `json:"pending_digital_review"`
	WaitingForSample     []domain.QARecord `json:"waiting_for_sample"`
	InQualityReview      []domain.QARecord `json:"in_quality_review"`
	ActiveVerified       []domain.QARecord `json:"active_verified"`
	Rejected             []domain.QARecord `json:"rejected"`
	ForRevision          []domain.QARecord `json:"for_revision"`
}

// Total counts records across all buckets.
func (b Buckets) Total() int {
	return len(b.PendingDigitalReview) + len(b.WaitingForSample) + len(b.InQualityReview) +
		len(b.ActiveVerified) + len(b.Rejected) + len(b.ForRevision)
}

// Materializer holds one actor's cached, partitioned view over the QA
// records in its scope. It never mutates records: transitions go through
// the engine, and a successful one is followed by Reload, never by a
// local patch of the transitioned record.
type Materializer struct {
	store RecordStore
	scope Scope

	mu      sync.RWMutex
	buckets Buckets
}

func NewMaterializer(store RecordStore, scope Scope) *Materializer {
	return &Materializer{store: store, scope: scope}
}

// Reload refetches the scoped record set from the authoritative store and
// repartitions it. On store failure the cached view keeps its pre-call
// value.
func (m *Materializer) Reload(ctx context.Context) (Buckets, error) {
	recs, err := m.store.List(ctx, m.scope.SellerID)
	if err != nil {
		return Buckets{}, &domain.PersistenceError{Op: "reload", Err: err}
	}

	var b Buckets
	for _, r := range recs {
		switch r.Status {
		case domain.StatusPendingDigitalReview:
			b.PendingDigitalReview = append(b.PendingDigitalReview, r)
		case domain.StatusWaitingForSample:
			b.WaitingForSample = append(b.WaitingForSample, r)
		case domain.StatusInQualityReview:
			b.InQualityReview = append(b.InQualityReview, r)
		case domain.StatusActiveVerified:
			b.ActiveVerified = append(b.ActiveVerified, r)
		case domain.StatusRejected:
			b.Rejected = append(b.Rejected, r)
		case domain.StatusForRevision:
			b.ForRevision = append(b.ForRevision, r)
		}
	}

	m.mu.Lock()
	m.buckets = b
	m.mu.Unlock()
	return b, nil
}

// Snapshot returns the last loaded view without touching the store.
func (m *Materializer) Snapshot() Buckets {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buckets
}

// Apply runs one transition and, only on success, reloads the view. The
// returned record comes from the authoritative store, never from a local
// guess.
func (m *Materializer) Apply(ctx context.Context, op func(context.Context) (*domain.QARecord, error)) (*domain.QARecord, error) {
	rec, err := op(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := m.Reload(ctx); err != nil {
		// The transition stands; only the cached view is stale.
		return rec, err
	}
	return rec, nil
}
