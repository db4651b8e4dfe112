package repos_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"marketqa/internal/domain"
	"marketqa/internal/repos"
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
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestCreateAndGetRoundtrip(t *testing.T) {
	db := memdb(t)
	repo := repos.NewQARecordRepo(db)
	ctx := context.Background()

	rec, err := repo.Create(ctx, domain.Listing{ID: "lst-1", SellerID: "s-maria", Title: "Clay Pot", Price: 450})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.StatusPendingDigitalReview || rec.SubmittedAt == "" {
		t.Fatalf("bad created record: %+v", rec)
	}

	got, err := repo.Get(ctx, "lst-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "lst-1" || got.SellerID != "s-maria" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestGetMissingRecord(t *testing.T) {
	db := memdb(t)
	repo := repos.NewQARecordRepo(db)

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows, got %v", err)
	}
}

func TestApplyTransitionUpdatesApprovalAtomically(t *testing.T) {
	db := memdb(t)
	repo := repos.NewQARecordRepo(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.Listing{ID: "lst-1", SellerID: "s-maria", Title: "Clay Pot", Price: 450}); err != nil {
		t.Fatal(err)
	}

	// Walk to a terminal state and check the derived flag follows.
	steps := []struct {
		from, to domain.Status
		approval string
	}{
		{domain.StatusPendingDigitalReview, domain.StatusWaitingForSample, "pending"},
		{domain.StatusWaitingForSample, domain.StatusInQualityReview, "pending"},
		{domain.StatusInQualityReview, domain.StatusActiveVerified, "approved"},
	}
	for _, s := range steps {
		rec, err := repo.ApplyTransition(ctx, "lst-1", s.from, repos.TransitionPatch{To: s.to})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status != s.to {
			t.Fatalf("want %s, got %s", s.to, rec.Status)
		}
		var approval string
		if err := db.Get(&approval, `SELECT approval FROM listings WHERE id='lst-1'`); err != nil {
			t.Fatal(err)
		}
		if approval != s.approval {
			t.Fatalf("after %s want approval %s, got %s", s.to, s.approval, approval)
		}
	}
}

func TestApplyTransitionGuardsExpectedStatus(t *testing.T) {
	db := memdb(t)
	repo := repos.NewQARecordRepo(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, domain.Listing{ID: "lst-1", SellerID: "s-maria", Title: "Clay Pot", Price: 450}); err != nil {
		t.Fatal(err)
	}

	// Guard expects a status the record is not in: the write must miss
	// and leave both tables untouched.
	_, err := repo.ApplyTransition(ctx, "lst-1", domain.StatusInQualityReview, repos.TransitionPatch{
		To:        domain.StatusActiveVerified,
		StampCols: []string{"quality_reviewed_at"},
	})
	if !errors.Is(err, repos.ErrStale) {
		t.Fatalf("want ErrStale, got %v", err)
	}

	rec, err := repo.Get(ctx, "lst-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.StatusPendingDigitalReview || rec.QualityReviewedAt != "" {
		t.Fatalf("guarded miss mutated record: %+v", rec)
	}
	var approval string
	if err := db.Get(&approval, `SELECT approval FROM listings WHERE id='lst-1'`); err != nil {
		t.Fatal(err)
	}
	if approval != "pending" {
		t.Fatalf("approval flag mutated on guarded miss: %s", approval)
	}

	_, err = repo.ApplyTransition(ctx, "ghost", domain.StatusPendingDigitalReview, repos.TransitionPatch{To: domain.StatusRejected})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows for missing record, got %v", err)
	}
}

func TestListScoping(t *testing.T) {
	db := memdb(t)
	repo := repos.NewQARecordRepo(db)
	ctx := context.Background()

	for _, l := range []domain.Listing{
		{ID: "lst-1", SellerID: "s-maria", Title: "Clay Pot", Price: 450},
		{ID: "lst-2", SellerID: "s-maria", Title: "Espadrilles", Price: 899},
		{ID: "lst-3", SellerID: "s-jun", Title: "Sleeping Mat", Price: 1200},
	} {
		if _, err := repo.Create(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 records, got %d", len(all))
	}

	mine, err := repo.List(ctx, "s-maria")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Fatalf("want 2 records for s-maria, got %d", len(mine))
	}
}
