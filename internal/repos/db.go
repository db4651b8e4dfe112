package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed demo users and listings if DB is empty (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('SELLER','MODERATOR')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Listings
CREATE TABLE IF NOT EXISTS listings(
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  title TEXT NOT NULL,
  description TEXT,
  category TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  images_json TEXT,
  approval TEXT NOT NULL DEFAULT 'pending' CHECK (approval IN ('pending','approved','rejected')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_listings_seller   ON listings(seller_id);
CREATE INDEX IF NOT EXISTS idx_listings_approval ON listings(approval);

-- QA records: exactly one per listing, same id
CREATE TABLE IF NOT EXISTS qa_records(
  id TEXT PRIMARY KEY REFERENCES listings(id) ON DELETE RESTRICT,
  seller_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  status TEXT NOT NULL CHECK (status IN (
    'PENDING_DIGITAL_REVIEW','WAITING_FOR_SAMPLE','IN_QUALITY_REVIEW',
    'ACTIVE_VERIFIED','REJECTED','FOR_REVISION')),
  logistics_method TEXT,
  logistics_address TEXT,
  logistics_notes TEXT,
  rejection_reason TEXT,
  rejection_stage TEXT CHECK (rejection_stage IN ('digital','physical') OR rejection_stage IS NULL),
  revision_reason TEXT,
  submitted_at TEXT DEFAULT CURRENT_TIMESTAMP,
  digital_reviewed_at TEXT,
  sample_submitted_at TEXT,
  quality_reviewed_at TEXT,
  rejected_at TEXT,
  revision_requested_at TEXT,
  digital_reviewer_id TEXT,
  quality_reviewer_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_qa_records_status ON qa_records(status);
CREATE INDEX IF NOT EXISTS idx_qa_records_seller ON qa_records(seller_id);

-- Seller notifications (append-only outbox)
CREATE TABLE IF NOT EXISTS notifications(
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  listing_id TEXT NOT NULL,
  kind TEXT NOT NULL CHECK (kind IN ('sample_request','product_approved','product_rejected','revision_requested')),
  reason TEXT,
  stage TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_notifications_seller ON notifications(seller_id);
`
	_, err := db.Exec(schema)
	return err
}

// seedUsers ensures two SELLERs and one MODERATOR exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), 12)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("s-maria", "maria@marketqa.test", "Maria", "SELLER", "Passw0rd!"),
		mk("s-jun", "jun@marketqa.test", "Jun", "SELLER", "Passw0rd!"),
		mk("m-ana", "ana@marketqa.test", "Ana", "MODERATOR", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// seedIfEmpty inserts demo listings in assorted workflow states.
func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM listings`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo listings/qa records")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO listings(id,seller_id,title,description,category,price,stock,images_json,approval) VALUES
	  ('lst-espadrilles','s-maria','Handwoven Espadrilles','Abaca fiber, size 6-10','footwear',899.00,25,'["listings/lst-espadrilles/main.jpg"]','pending'),
	  ('lst-claypot','s-maria','Stoneware Clay Pot','Hand-thrown, food safe','kitchen',450.00,10,'["listings/lst-claypot/main.jpg"]','pending'),
	  ('lst-banig','s-jun','Pandan Sleeping Mat','Double weave, 4x7 ft','home',1200.00,8,'["listings/lst-banig/main.jpg"]','approved')`)

	tx.MustExec(`INSERT INTO qa_records(id,seller_id,status) VALUES
	  ('lst-espadrilles','s-maria','PENDING_DIGITAL_REVIEW')`)
	tx.MustExec(`INSERT INTO qa_records(id,seller_id,status,logistics_method,digital_reviewed_at,sample_submitted_at,digital_reviewer_id) VALUES
	  ('lst-claypot','s-maria','IN_QUALITY_REVIEW','drop_off_courier',CURRENT_TIMESTAMP,CURRENT_TIMESTAMP,'m-ana')`)
	tx.MustExec(`INSERT INTO qa_records(id,seller_id,status,logistics_method,digital_reviewed_at,sample_submitted_at,quality_reviewed_at,digital_reviewer_id,quality_reviewer_id) VALUES
	  ('lst-banig','s-jun','ACTIVE_VERIFIED','company_pickup',CURRENT_TIMESTAMP,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP,'m-ana','m-ana')`)

	return tx.Commit()
}
