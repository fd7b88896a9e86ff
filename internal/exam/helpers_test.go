package exam_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/skillassess/internal/exam"
	"github.com/mind-engage/skillassess/internal/ledger"
	"github.com/mind-engage/skillassess/internal/logger"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// keyFor is the correct answer for question i (1-based) in fakeQuestions.
func keyFor(i int) string { return []string{"a", "b", "c", "d"}[(i-1)%4] }

func fakeQuestions(n int) []exam.Question {
	qs := make([]exam.Question, n)
	for i := range qs {
		qs[i] = exam.Question{
			ID:      fmt.Sprintf("q%d", i+1),
			Skill:   "Go",
			Prompt:  fmt.Sprintf("question %d", i+1),
			Options: []string{"a", "b", "c", "d"},
			Correct: keyFor(i + 1),
		}
	}
	return qs
}

// fakeGen returns fakeQuestions(req.Count) and counts calls.
type fakeGen struct{ calls atomic.Int32 }

func (g *fakeGen) Generate(_ context.Context, req exam.GenerateRequest) ([]exam.Question, error) {
	g.calls.Add(1)
	return fakeQuestions(req.Count), nil
}

// countingStore records template writes so tests can prove nothing was stored.
type countingStore struct {
	exam.Store
	puts     atomic.Int32
	takenFor int32 // first n PutTemplate calls report a collision
}

func (s *countingStore) PutTemplate(ctx context.Context, t exam.Template) error {
	if n := s.puts.Add(1); n <= s.takenFor {
		return exam.ErrCodeTaken
	}
	return s.Store.PutTemplate(ctx, t)
}

type harness struct {
	engine *exam.Engine
	store  exam.Store
	ledger ledger.Ledger
	clock  *clock
}

func newHarness(t *testing.T, opts ...exam.Option) *harness {
	t.Helper()
	return newHarnessWith(t, exam.NewInMemoryStore(), ledger.NewInMemory(), &fakeGen{}, opts...)
}

func newHarnessWith(t *testing.T, store exam.Store, led ledger.Ledger, gen exam.Generator, opts ...exam.Option) *harness {
	t.Helper()
	clk := newClock()
	base := []exam.Option{exam.WithClock(clk.Now), exam.WithLogger(logger.Discard())}
	e := exam.NewEngine(store, led, gen, append(base, opts...)...)
	return &harness{engine: e, store: store, ledger: led, clock: clk}
}

func spec(n, minutes int) exam.TemplateSpec {
	return exam.TemplateSpec{
		Skills:       []string{"Go"},
		Difficulty:   exam.DifficultyMedium,
		NumQuestions: n,
		TimeLimitMin: minutes,
	}
}

func (h *harness) mustCreate(t *testing.T, n, minutes int) string {
	t.Helper()
	code, err := h.engine.CreateTemplate(context.Background(), spec(n, minutes))
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return code
}

func (h *harness) mustOpen(t *testing.T, code, name string) exam.Session {
	t.Helper()
	s, err := h.engine.OpenSession(context.Background(), code, name)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return s
}

func (h *harness) entries(t *testing.T) []ledger.Entry {
	t.Helper()
	list, err := h.ledger.List(context.Background())
	if err != nil {
		t.Fatalf("ledger List: %v", err)
	}
	return list
}
