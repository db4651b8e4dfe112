package services

import (
	"context"

	"marketqa/internal/domain"
	"marketqa/internal/repos"
)

// RecordStore is the authoritative QA record store. repos.QARecordRepo is
// the production implementation; tests substitute fakes.
type RecordStore interface {
	Create(ctx context.Context, l domain.Listing) (*domain.QARecord, error)
	Get(ctx context.Context, id string) (*domain.QARecord, error)
	List(ctx context.Context, sellerID string) ([]domain.QARecord, error)
	ApplyTransition(ctx context.Context, id string, from domain.Status, patch repos.TransitionPatch) (*domain.QARecord, error)
}

// Notifier is the best-effort side channel informing sellers of status
// changes. Failures are logged and never roll back a transition.
type Notifier interface {
	NotifySampleRequest(ctx context.Context, sellerID, listingID string) error
	NotifyProductApproved(ctx context.Context, sellerID, listingID string) error
	NotifyProductRejected(ctx context.Context, sellerID, listingID, reason, stage string) error
	NotifyRevisionRequested(ctx context.Context, sellerID, listingID, reason string) error
}
