package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ConnectMySQL opens and pings the feedback database.
func ConnectMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}
	return db, nil
}

// MySQLFeedbackStore persists feedback rows.
//
// Expected schema:
//
//	CREATE TABLE feedback (
//	    id          BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    scan_id     VARCHAR(64)  NOT NULL,
//	    rating      TINYINT      NOT NULL,
//	    comment     TEXT         NULL,
//	    correction  TEXT         NULL,
//	    created_at  DATETIME     NOT NULL,
//	    KEY idx_feedback_scan (scan_id)
//	);
type MySQLFeedbackStore struct {
	db *sql.DB
}

func NewMySQLFeedbackStore(db *sql.DB) *MySQLFeedbackStore {
	return &MySQLFeedbackStore{db: db}
}

func (s *MySQLFeedbackStore) SaveFeedback(ctx context.Context, f Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (scan_id, rating, comment, correction, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ScanID, f.Rating, nullable(f.Comment), nullable(f.Correction), f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
