package services

import (
	"context"

	"github.com/google/uuid"

	"marketqa/internal/repos"
)

// Notification kinds written to the outbox.
const (
	KindSampleRequest     = "sample_request"
	KindProductApproved   = "product_approved"
	KindProductRejected   = "product_rejected"
	KindRevisionRequested = "revision_requested"
)

// OutboxNotifier appends seller notifications to the notifications table.
type OutboxNotifier struct {
	Repo *repos.NotificationRepo
}

func NewOutboxNotifier(repo *repos.NotificationRepo) *OutboxNotifier {
	return &OutboxNotifier{Repo: repo}
}

func (n *OutboxNotifier) NotifySampleRequest(ctx context.Context, sellerID, listingID string) error {
	return n.Repo.Insert(ctx, uuid.NewString(), sellerID, listingID, KindSampleRequest, "", "")
}

func (n *OutboxNotifier) NotifyProductApproved(ctx context.Context, sellerID, listingID string) error {
	return n.Repo.Insert(ctx, uuid.NewString(), sellerID, listingID, KindProductApproved, "", "")
}

func (n *OutboxNotifier) NotifyProductRejected(ctx context.Context, sellerID, listingID, reason, stage string) error {
	return n.Repo.Insert(ctx, uuid.NewString(), sellerID, listingID, KindProductRejected, reason, stage)
}

func (n *OutboxNotifier) NotifyRevisionRequested(ctx context.Context, sellerID, listingID, reason string) error {
	return n.Repo.Insert(ctx, uuid.NewString(), sellerID, listingID, KindRevisionRequested, reason, "")
}
