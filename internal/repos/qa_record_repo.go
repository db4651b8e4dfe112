package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketqa/internal/domain"
)

// ErrStale is returned when a guarded transition write matches no row
// because a concurrent write moved the record out of its expected status.
var ErrStale = errors.New("record modified by a concurrent write")

type QARecordRepo struct{ db *sqlx.DB }

func NewQARecordRepo(db *sqlx.DB) *QARecordRepo { return &QARecordRepo{db: db} }

const recordCols = `
  id, seller_id, status,
  COALESCE(logistics_method,'')  AS logistics_method,
  COALESCE(logistics_address,'') AS logistics_address,
  COALESCE(logistics_notes,'')   AS logistics_notes,
  COALESCE(rejection_reason,'')  AS rejection_reason,
  COALESCE(rejection_stage,'')   AS rejection_stage,
  COALESCE(revision_reason,'')   AS revision_reason,
  COALESCE(submitted_at,'')          AS submitted_at,
  COALESCE(digital_reviewed_at,'')   AS digital_reviewed_at,
  COALESCE(sample_submitted_at,'')   AS sample_submitted_at,
  COALESCE(quality_reviewed_at,'')   AS quality_reviewed_at,
  COALESCE(rejected_at,'')           AS rejected_at,
  COALESCE(revision_requested_at,'') AS revision_requested_at,
  COALESCE(digital_reviewer_id,'')   AS digital_reviewer_id,
  COALESCE(quality_reviewer_id,'')   AS quality_reviewer_id`

// TransitionPatch carries the column writes for one status transition.
// Stamp columns are written with the store's clock, not the caller's.
type TransitionPatch struct {
	To        domain.Status
	Set       map[string]any
	StampCols []string
}

// Create inserts the Listing and its QA record in one transaction. The
// record starts in PENDING_DIGITAL_REVIEW with submitted_at stamped.
func (r *QARecordRepo) Create(ctx context.Context, l domain.Listing) (*domain.QARecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	  INSERT INTO listings(id,seller_id,title,description,category,price,stock,images_json,approval,created_at)
	  VALUES(?,?,?,?,?,?,?,?,'pending',CURRENT_TIMESTAMP)
	`, l.ID, l.SellerID, l.Title, l.Description, l.Category, l.Price, l.Stock, l.ImagesJSON); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
	  INSERT INTO qa_records(id,seller_id,status,submitted_at)
	  VALUES(?,?,?,CURRENT_TIMESTAMP)
	`, l.ID, l.SellerID, domain.StatusPendingDigitalReview); err != nil {
		return nil, err
	}

	var rec domain.QARecord
	if err := tx.GetContext(ctx, &rec, `SELECT `+recordCols+` FROM qa_records WHERE id = ?`, l.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *QARecordRepo) Get(ctx context.Context, id string) (*domain.QARecord, error) {
	var rec domain.QARecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordCols+` FROM qa_records WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, or only one seller's when sellerID is set.
func (r *QARecordRepo) List(ctx context.Context, sellerID string) ([]domain.QARecord, error) {
	q := `SELECT ` + recordCols + ` FROM qa_records`
	args := []any{}
	if sellerID != "" {
		q += ` WHERE seller_id = ?`
		args = append(args, sellerID)
	}
	q += ` ORDER BY datetime(submitted_at) DESC, id`

	var out []domain.QARecord
	err := r.db.SelectContext(ctx, &out, q, args...)
	return out, err
}

// ApplyTransition moves a record from its expected status to patch.To and
// recomputes the listing approval flag, all in one transaction. The UPDATE
// is guarded on the expected status; a miss on an existing row means a
// concurrent write won and surfaces as ErrStale.
func (r *QARecordRepo) ApplyTransition(ctx context.Context, id string, from domain.Status, patch TransitionPatch) (*domain.QARecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	set := `status = ?`
	args := []any{patch.To}
	for col, v := range patch.Set {
		set += `, ` + col + ` = ?`
		args = append(args, v)
	}
	for _, col := range patch.StampCols {
		set += `, ` + col + ` = CURRENT_TIMESTAMP`
	}
	args = append(args, id, from)

	res, err := tx.ExecContext(ctx, `UPDATE qa_records SET `+set+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM qa_records WHERE id = ?`, id); err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, sql.ErrNoRows
		}
		return nil, ErrStale
	}

	if _, err := tx.ExecContext(ctx, `
	  UPDATE listings SET approval = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, domain.ApprovalFor(patch.To), id); err != nil {
		return nil, err
	}

	var rec domain.QARecord
	if err := tx.GetContext(ctx, &rec, `SELECT `+recordCols+` FROM qa_records WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &rec, nil
}
