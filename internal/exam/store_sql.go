package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutTemplate(ctx context.Context, t Template) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	sj, err := json.Marshal(t.Skills)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO templates (code,skills,difficulty,time_limit_min,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.Code, string(sj), string(t.Difficulty), t.TimeLimitMin, string(qj), t.CreatedAt.UnixMilli())
	if err != nil && isUniqueViolation(err) {
		return ErrCodeTaken
	}
	return err
}

func (s *SQLStore) GetTemplate(ctx context.Context, code string) (Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT code,skills,difficulty,time_limit_min,questions_json,created_at FROM templates WHERE code=$1`, code)
	var (
		t            Template
		sjson, qjson string
		difficulty   string
		created      int64
	)
	if err := row.Scan(&t.Code, &sjson, &difficulty, &t.TimeLimitMin, &qjson, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	if err := json.Unmarshal([]byte(sjson), &t.Skills); err != nil {
		return Template{}, fmt.Errorf("decode skills: %w", err)
	}
	if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
		return Template{}, fmt.Errorf("decode questions: %w", err)
	}
	t.Difficulty = Difficulty(difficulty)
	t.CreatedAt = time.UnixMilli(created).UTC()
	return t, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, sess Session) error {
	// ensure template exists
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM templates WHERE code=$1`, sess.Code).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if sess.Answers == nil {
		sess.Answers = map[string]string{}
	}
	aj, err := json.Marshal(sess.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (id,code,candidate_name,status,answers_json,started_at,deadline)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.Code, sess.CandidateName, string(StatusActive), string(aj), sess.StartedAt.UnixMilli(), sess.Deadline.UnixMilli())
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

const sessionColumns = `id,code,candidate_name,status,answers_json,started_at,deadline,submitted_at,forced,result_json,ledger_seq`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess      Session
		status    string
		ajson     string
		started   int64
		deadline  int64
		submitted sql.NullInt64
		forced    int
		rjson     sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Code, &sess.CandidateName, &status, &ajson,
		&started, &deadline, &submitted, &forced, &rjson, &sess.LedgerSeq); err != nil {
		return Session{}, err
	}
	sess.Status = Status(status)
	if err := json.Unmarshal([]byte(ajson), &sess.Answers); err != nil || sess.Answers == nil {
		sess.Answers = map[string]string{}
	}
	sess.StartedAt = time.UnixMilli(started).UTC()
	sess.Deadline = time.UnixMilli(deadline).UTC()
	if submitted.Valid {
		at := time.UnixMilli(submitted.Int64).UTC()
		sess.SubmittedAt = &at
	}
	sess.Forced = forced != 0
	if rjson.Valid && rjson.String != "" {
		var res grading.Result
		if err := json.Unmarshal([]byte(rjson.String), &res); err != nil {
			return Session{}, fmt.Errorf("decode result: %w", err)
		}
		sess.Result = &res
	}
	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

func (s *SQLStore) FindActiveSession(ctx context.Context, code, candidate string) (Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE code=$1 AND candidate_name=$2 AND status=$3
		 ORDER BY started_at DESC LIMIT 1`, code, candidate, string(StatusActive)))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// SaveAnswers merges the batch into answers_json inside one transaction.
func (s *SQLStore) SaveAnswers(ctx context.Context, id string, batch map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status, ajson string
	if err := tx.QueryRowContext(ctx, `SELECT status,answers_json FROM sessions WHERE id=$1`, id).Scan(&status, &ajson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if Status(status) != StatusActive {
		return ErrSessionClosed
	}
	answers := map[string]string{}
	if err := json.Unmarshal([]byte(ajson), &answers); err != nil || answers == nil {
		answers = map[string]string{}
	}
	for qid, opt := range batch {
		answers[qid] = opt
	}
	buf, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET answers_json=$1 WHERE id=$2 AND status=$3`, string(buf), id, string(StatusActive))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionClosed
	}
	return tx.Commit()
}

func (s *SQLStore) MarkSubmitted(ctx context.Context, id string, result grading.Result, at time.Time, forced bool) (bool, error) {
	rj, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	f := 0
	if forced {
		f = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status=$1, result_json=$2, submitted_at=$3, forced=$4 WHERE id=$5 AND status=$6`,
		string(StatusSubmitted), string(rj), at.UnixMilli(), f, id, string(StatusActive))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// either unknown or already submitted
		if _, err := s.GetSession(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLStore) SetLedgerSeq(ctx context.Context, id string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ledger_seq=$1 WHERE id=$2`, seq, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListExpired(ctx context.Context, now time.Time) ([]Session, error) {
	return s.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status=$1 AND deadline <= $2 ORDER BY deadline ASC`,
		string(StatusActive), now.UnixMilli())
}

func (s *SQLStore) ListUnledgered(ctx context.Context) ([]Session, error) {
	return s.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status=$1 AND ledger_seq=0 ORDER BY submitted_at ASC`,
		string(StatusSubmitted))
}

func (s *SQLStore) listSessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Ping lets readiness probes reach the database through the store.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
