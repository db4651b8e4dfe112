package repos

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketqa/internal/domain"
)

// ErrNotOwned is returned when a seller edits a listing they do not own.
var ErrNotOwned = errors.New("listing not owned by seller")

type ListingRepo struct{ db *sqlx.DB }

func NewListingRepo(db *sqlx.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingCols = `
  id, seller_id, title, COALESCE(description,'') AS description,
  COALESCE(category,'') AS category, price, stock,
  COALESCE(images_json,'') AS images_json, approval,
  created_at, COALESCE(updated_at,'') AS updated_at`

func (r *ListingRepo) Get(ctx context.Context, id string) (domain.Listing, error) {
	var l domain.Listing
	err := r.db.GetContext(ctx, &l, `SELECT `+listingCols+` FROM listings WHERE id = ?`, id)
	return l, err
}

func (r *ListingRepo) ListBySeller(ctx context.Context, sellerID string) ([]domain.Listing, error) {
	var out []domain.Listing
	err := r.db.SelectContext(ctx, &out, `
	  SELECT `+listingCols+`
	  FROM listings
	  WHERE seller_id = ?
	  ORDER BY datetime(created_at) DESC
	`, sellerID)
	return out, err
}

// UpdateContent lets a seller edit display attributes of their own listing.
// The approval flag is untouched; only QA transitions write it.
func (r *ListingRepo) UpdateContent(ctx context.Context, sellerID, id, title, description, category string, price float64, stock int) error {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE listings
	  SET title = ?, description = ?, category = ?, price = ?, stock = ?, updated_at = CURRENT_TIMESTAMP
	  WHERE id = ? AND seller_id = ?
	`, title, description, category, price, stock, id, sellerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotOwned
	}
	return nil
}
