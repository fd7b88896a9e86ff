package exam

import (
	"context"
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

// Store persists templates and sessions. Implementations return ErrNotFound
// for unknown keys; any other error is treated as a backend outage.
type Store interface {
	PutTemplate(ctx context.Context, t Template) error // ErrCodeTaken on collision
	GetTemplate(ctx context.Context, code string) (Template, error)

	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// FindActiveSession returns the most recent active session for the pair.
	FindActiveSession(ctx context.Context, code, candidate string) (Session, error)
	// SaveAnswers writes a batch in one step: all of it or, with
	// ErrSessionClosed when the session is no longer active, none of it.
	SaveAnswers(ctx context.Context, id string, answers map[string]string) error
	// MarkSubmitted freezes an active session with its result. It reports false
	// when the session had already left the active state.
	MarkSubmitted(ctx context.Context, id string, res grading.Result, at time.Time, forced bool) (bool, error)
	SetLedgerSeq(ctx context.Context, id string, seq int64) error
	// ListExpired returns active sessions whose deadline is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]Session, error)
	// ListUnledgered returns submitted sessions whose ledger entry was never
	// confirmed (LedgerSeq == 0).
	ListUnledgered(ctx context.Context) ([]Session, error)
}

// Generator produces the question set for a new template.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Question, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) ([]Question, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) ([]Question, error) {
	return f(ctx, req)
}
