package exam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/grading"
	"github.com/mind-engage/skillassess/internal/ledger"
)

const maxCandidateName = 120

func normalizeCandidate(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", invalid("candidateName", "is required")
	}
	if len([]rune(n)) > maxCandidateName {
		return "", invalid("candidateName", "at most %d characters", maxCandidateName)
	}
	return n, nil
}

// validateAnswer rejects unknown question ids and options the question
// never offered.
func validateAnswer(t Template, questionID, option string) error {
	q, ok := t.question(questionID)
	if !ok {
		return invalid("answers", "unknown question %q", questionID)
	}
	if !q.hasOption(option) {
		return invalid("answers", "%q is not an option of question %q", option, questionID)
	}
	return nil
}

func validateAnswers(t Template, answers map[string]string) error {
	for _, qid := range sortedKeys(answers) {
		if err := validateAnswer(t, qid, answers[qid]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OpenSession redeems an access code for a new timed session. What happens
// when the candidate already holds an active session depends on ReusePolicy.
func (e *Engine) OpenSession(ctx context.Context, code, candidateName string) (Session, error) {
	name, err := normalizeCandidate(candidateName)
	if err != nil {
		return Session{}, err
	}
	t, err := e.template(ctx, code)
	if err != nil {
		return Session{}, err
	}

	if e.reuse != ReuseNew {
		unlock := e.locks.Lock("open|" + t.Code + "|" + name)
		defer unlock()

		existing, err := e.store.FindActiveSession(ctx, t.Code, name)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return Session{}, unavailable("find session", err)
		default:
			live, err := e.settle(ctx, existing.ID)
			if err != nil {
				return Session{}, err
			}
			if live.Status == StatusActive {
				if e.reuse == ReuseReject {
					return Session{}, fmt.Errorf("%w: %s already has an active session for %s", ErrConflict, name, t.Code)
				}
				e.metrics.SessionOpened(true)
				return live, nil
			}
		}
	}

	now := e.now().UTC()
	s := Session{
		ID:            e.newID(),
		Code:          t.Code,
		CandidateName: name,
		Status:        StatusActive,
		Answers:       map[string]string{},
		StartedAt:     now,
		Deadline:      Deadline(now, t),
	}
	if err := e.store.CreateSession(ctx, s); err != nil {
		return Session{}, unavailable("create session", err)
	}
	e.metrics.SessionOpened(false)
	e.log.WithFields(logrus.Fields{
		"session":  s.ID,
		"code":     s.Code,
		"deadline": s.Deadline,
	}).Info("session opened")
	return s, nil
}

// Session returns the current state, force-submitting it first if its
// deadline has passed.
//
// Any interaction counts as the "next interaction" that enforces the deadline.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.settleLocked(ctx, id)
}

func (e *Engine) settle(ctx context.Context, id string) (Session, error) {
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.settleLocked(ctx, id)
}

func (e *Engine) settleLocked(ctx context.Context, id string) (Session, error) {
	s, t, err := e.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Status == StatusActive && Expired(e.now(), s) {
		return e.submitLocked(ctx, s, t, true)
	}
	if s.Status == StatusSubmitted && s.LedgerSeq == 0 {
		return e.submitLocked(ctx, s, t, s.Forced)
	}
	return s, nil
}

func (e *Engine) load(ctx context.Context, id string) (Session, Template, error) {
	s, err := e.store.GetSession(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Session{}, Template{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, Template{}, unavailable("load session", err)
	}
	t, err := e.template(ctx, s.Code)
	if err != nil {
		return Session{}, Template{}, err
	}
	return s, t, nil
}

// RecordAnswer stores one selection while the session is active and inside
// its deadline. Writes to a submitted or expired session are ignored and
// return the unchanged session, unless strict late writes are enabled.
func (e *Engine) RecordAnswer(ctx context.Context, sessionID, questionID, option string) (Session, error) {
	return e.RecordAnswers(ctx, sessionID, map[string]string{questionID: option})
}

// RecordAnswers applies a batch atomically with respect to submit: the whole
// batch is validated first, then written in a single store call.
func (e *Engine) RecordAnswers(ctx context.Context, sessionID string, answers map[string]string) (Session, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, t, err := e.load(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := validateAnswers(t, answers); err != nil {
		return Session{}, err
	}
	return e.recordLocked(ctx, s, t, answers, e.strict)
}

func (e *Engine) recordLocked(ctx context.Context, s Session, t Template, answers map[string]string, strict bool) (Session, error) {
	if s.Status == StatusActive && Expired(e.now(), s) {
		var err error
		if s, err = e.submitLocked(ctx, s, t, true); err != nil {
			return Session{}, err
		}
	}
	if s.Status != StatusActive {
		return e.lateWrite(s, len(answers), strict)
	}

	if len(answers) == 0 {
		return s, nil
	}
	err := e.store.SaveAnswers(ctx, s.ID, answers)
	if errors.Is(err, ErrSessionClosed) {
		// completed elsewhere between load and write
		fresh, lerr := e.store.GetSession(ctx, s.ID)
		if lerr != nil {
			return Session{}, unavailable("load session", lerr)
		}
		return e.lateWrite(fresh, len(answers), strict)
	}
	if err != nil {
		return Session{}, unavailable("save answers", err)
	}
	for qid, opt := range answers {
		s.Answers[qid] = opt
		e.metrics.AnswerRecorded("accepted")
	}
	return s, nil
}

func (e *Engine) lateWrite(s Session, n int, strict bool) (Session, error) {
	if n == 0 {
		return s, nil
	}
	if strict {
		e.metrics.AnswerRecorded("rejected")
		return Session{}, fmt.Errorf("session %q: %w", s.ID, ErrSessionClosed)
	}
	e.metrics.AnswerRecorded("ignored")
	e.log.WithField("session", s.ID).Debug("answer ignored on closed session")
	return s, nil
}

// Submit is the single terminal transition. The first call grades and
// appends to the ledger; later calls return the stored result unchanged.
// A submit arriving after the deadline is recorded as forced.
func (e *Engine) Submit(ctx context.Context, sessionID string) (grading.Result, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	s, t, err := e.load(ctx, sessionID)
	if err != nil {
		return grading.Result{}, err
	}
	s, err = e.submitLocked(ctx, s, t, Expired(e.now(), s))
	if err != nil {
		return grading.Result{}, err
	}
	if s.Result == nil {
		return grading.Result{}, fmt.Errorf("session %q: %w: submitted without a stored result", s.ID, ErrUnavailable)
	}
	return *s.Result, nil
}

// SubmitTest is the one-shot flow used by the reference client: record the
// answers into sessionID (or a session opened for candidateName) and submit.
// Answers are validated before any state changes.
func (e *Engine) SubmitTest(ctx context.Context, code, candidateName, sessionID string, answers map[string]string) (Session, error) {
	t, err := e.template(ctx, code)
	if err != nil {
		return Session{}, err
	}
	if err := validateAnswers(t, answers); err != nil {
		return Session{}, err
	}

	var s Session
	if sessionID == "" {
		if s, err = e.OpenSession(ctx, t.Code, candidateName); err != nil {
			return Session{}, err
		}
	} else {
		if s, err = e.store.GetSession(ctx, sessionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Session{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
			}
			return Session{}, unavailable("load session", err)
		}
		if s.Code != t.Code {
			return Session{}, invalid("sessionId", "session belongs to a different test")
		}
	}

	unlock := e.locks.Lock(s.ID)
	defer unlock()

	s, t, err = e.load(ctx, s.ID)
	if err != nil {
		return Session{}, err
	}
	// A late or closed write is not an error here: the candidate still gets
	// the result that was frozen at the deadline.
	s, err = e.recordLocked(ctx, s, t, answers, false)
	if err != nil {
		return Session{}, err
	}
	return e.submitLocked(ctx, s, t, Expired(e.now(), s))
}

// submitLocked grades and freezes s. Callers hold the session lock.
func (e *Engine) submitLocked(ctx context.Context, s Session, t Template, forced bool) (Session, error) {
	if s.Status == StatusSubmitted {
		if s.LedgerSeq == 0 && s.Result != nil {
			return e.appendLedger(ctx, s)
		}
		return s, nil
	}

	res := e.grader.Grade(t.gradingItems(), s.Answers)
	at := e.now().UTC()
	ok, err := e.store.MarkSubmitted(ctx, s.ID, res, at, forced)
	if err != nil {
		return Session{}, unavailable("submit session", err)
	}
	if !ok {
		// another writer completed it first; report what it stored
		fresh, err := e.store.GetSession(ctx, s.ID)
		if err != nil {
			return Session{}, unavailable("load session", err)
		}
		return fresh, nil
	}

	s.Status = StatusSubmitted
	s.Result = &res
	s.SubmittedAt = &at
	s.Forced = forced
	e.metrics.Submitted(string(res.Status), forced)
	e.log.WithFields(logrus.Fields{
		"session":    s.ID,
		"code":       s.Code,
		"score":      res.Score,
		"total":      res.Total,
		"percentage": res.Percentage,
		"status":     res.Status,
		"forced":     forced,
	}).Info("session graded")
	return e.appendLedger(ctx, s)
}

func (e *Engine) appendLedger(ctx context.Context, s Session) (Session, error) {
	at := e.now().UTC()
	if s.SubmittedAt != nil {
		at = *s.SubmittedAt
	}
	entry, err := e.ledger.Append(ctx, ledger.NewEntry(s.ID, s.Code, s.CandidateName, *s.Result, s.Forced, at))
	if err != nil {
		e.log.WithError(err).WithField("session", s.ID).Error("ledger append failed")
		return Session{}, unavailable("append ledger", err)
	}
	s.LedgerSeq = entry.Seq
	if err := e.store.SetLedgerSeq(ctx, s.ID, entry.Seq); err != nil {
		e.log.WithError(err).WithField("session", s.ID).Warn("ledger sequence not stored")
	}
	return s, nil
}

// Ledger lists graded submissions in append order for the issuer.
func (e *Engine) Ledger(ctx context.Context) ([]ledger.Entry, error) {
	list, err := e.ledger.List(ctx)
	if err != nil {
		return nil, unavailable("list ledger", err)
	}
	return list, nil
}
