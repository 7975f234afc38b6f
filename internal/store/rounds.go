package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RoundRecord is one finished round as written to the history table.
type RoundRecord struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"-"`
	AnonymousID string    `json:"-"`
	Mode        string    `json:"mode"`
	Won         bool      `json:"won"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Rounds is the SQLite-backed round history.
type Rounds struct{ db *sql.DB }

// NewRounds wraps db.
func NewRounds(db *sql.DB) *Rounds { return &Rounds{db: db} }

// Record appends r and, for signed-in players, bumps games_played, wins and
// best_score in the same transaction.
func (s *Rounds) Record(ctx context.Context, r RoundRecord) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO rounds (session_id, user_id, anonymous_id, mode, won, score, total, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, nullable(r.UserID), nullable(r.AnonymousID), r.Mode, r.Won, r.Score, r.Total,
		r.FinishedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	if r.UserID != "" {
		wins := 0
		if r.Won {
			wins = 1
		}
		if _, err := tx.ExecContext(ctx, `
            UPDATE users
            SET games_played = games_played + 1,
                wins = wins + ?,
                best_score = MAX(best_score, ?)
            WHERE id=?`, wins, r.Score, r.UserID,
		); err != nil {
			return fmt.Errorf("bump stats: %w", err)
		}
	}
	return tx.Commit()
}

// Mine returns a user's most recent rounds, newest first.
func (s *Rounds) Mine(ctx context.Context, userID string, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id, mode, won, score, total, finished_at
        FROM rounds WHERE user_id=?
        ORDER BY finished_at DESC, id DESC
        LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RoundRecord, 0, limit)
	for rows.Next() {
		var r RoundRecord
		var finished string
		if err := rows.Scan(&r.SessionID, &r.Mode, &r.Won, &r.Score, &r.Total, &finished); err != nil {
			return nil, err
		}
		r.UserID = userID
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimAnonymous moves an anonymous player's rounds onto a user account.
func (s *Rounds) ClaimAnonymous(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
