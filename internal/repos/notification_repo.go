package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type NotificationRepo struct{ db *sqlx.DB }

func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{db: db} }

type NotificationRow struct {
	ID        string `db:"id" json:"id"`
	SellerID  string `db:"seller_id" json:"sellerId"`
	ListingID string `db:"listing_id" json:"listingId"`
	Kind      string `db:"kind" json:"kind"`
	Reason    string `db:"reason" json:"reason,omitempty"`
	Stage     string `db:"stage" json:"stage,omitempty"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

func (r *NotificationRepo) Insert(ctx context.Context, id, sellerID, listingID, kind, reason, stage string) error {
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO notifications(id, seller_id, listing_id, kind, reason, stage)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, id, sellerID, listingID, kind, reason, stage)
	return err
}

func (r *NotificationRepo) ListBySeller(ctx context.Context, sellerID string, limit int) ([]NotificationRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []NotificationRow
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, seller_id, listing_id, kind, COALESCE(reason,'') AS reason, COALESCE(stage,'') AS stage, created_at
	  FROM notifications
	  WHERE seller_id = ?
	  ORDER BY datetime(created_at) DESC, id
	  LIMIT ?
	`, sellerID, limit)
	return out, err
}
