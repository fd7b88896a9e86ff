package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

// SQLLedger appends to the submissions table created by db.Open.
// Ordering comes from the autoincrement seq column.
type SQLLedger struct{ db *sql.DB }

func NewSQLLedger(db *sql.DB) *SQLLedger { return &SQLLedger{db: db} }

func (l *SQLLedger) Append(ctx context.Context, e Entry) (Entry, error) {
	forced := 0
	if e.Forced {
		forced = 1
	}
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO submissions (session_id, test_code, candidate_name, score, total, percentage, status, forced, graded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (session_id) DO NOTHING RETURNING seq`,
		e.SessionID, e.TestCode, e.CandidateName, e.Score, e.Total, e.Percentage, string(e.Status), forced, e.GradedAt.UnixMilli(),
	).Scan(&e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		// already recorded by an earlier attempt
		row := l.db.QueryRowContext(ctx, selectSubmissions+` WHERE session_id = $1`, e.SessionID)
		stored, err := scanEntry(row)
		if err != nil {
			return Entry{}, fmt.Errorf("load recorded submission: %w", err)
		}
		return stored, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("append submission: %w", err)
	}
	return e, nil
}

const selectSubmissions = `SELECT seq, session_id, test_code, candidate_name, score, total, percentage, status, forced, graded_at
		 FROM submissions`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var (
		e      Entry
		status string
		forced int
		graded int64
	)
	if err := r.Scan(&e.Seq, &e.SessionID, &e.TestCode, &e.CandidateName,
		&e.Score, &e.Total, &e.Percentage, &status, &forced, &graded); err != nil {
		return Entry{}, err
	}
	e.Status = grading.Status(status)
	e.Forced = forced != 0
	e.GradedAt = time.UnixMilli(graded).UTC()
	return e, nil
}

func (l *SQLLedger) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectSubmissions+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}
