package exam

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/grading"
	"github.com/mind-engage/skillassess/internal/ledger"
	"github.com/mind-engage/skillassess/internal/metrics"
)

// ReusePolicy decides what OpenSession does when the same candidate name
// already holds an active session for the code.
type ReusePolicy string

const (
	ReuseNew      ReusePolicy = "new"    // open an independent session (reference behaviour)
	ReuseExisting ReusePolicy = "reuse"  // hand back the active session
	ReuseReject   ReusePolicy = "reject" // fail with ErrConflict
)

func ParseReusePolicy(s string) (ReusePolicy, error) {
	switch p := ReusePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ReuseNew, ReuseExisting, ReuseReject:
		return p, nil
	case "":
		return ReuseNew, nil
	}
	return "", fmt.Errorf("unknown session reuse policy %q", s)
}

const (
	defaultGenerateTimeout = 15 * time.Second
	maxCodeAttempts        = 5
)

// Engine owns the session lifecycle: it issues templates, opens sessions,
// records answers, enforces deadlines and grades exactly once per session.
type Engine struct {
	store  Store
	ledger ledger.Ledger
	gen    Generator
	grader *grading.Grader

	now        func() time.Time
	newID      func() string
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	reuse      ReusePolicy
	strict     bool
	codeLen    int
	genTimeout time.Duration

	locks keyedMutex
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option      { return func(e *Engine) { e.now = now } }
func WithLogger(l logrus.FieldLogger) Option     { return func(e *Engine) { e.log = l } }
func WithMetrics(m *metrics.Metrics) Option      { return func(e *Engine) { e.metrics = m } }
func WithReusePolicy(p ReusePolicy) Option       { return func(e *Engine) { e.reuse = p } }
func WithGrader(g *grading.Grader) Option        { return func(e *Engine) { e.grader = g } }
func WithCodeLength(n int) Option                { return func(e *Engine) { e.codeLen = n } }
func WithGenerateTimeout(d time.Duration) Option { return func(e *Engine) { e.genTimeout = d } }
func WithSessionIDs(newID func() string) Option  { return func(e *Engine) { e.newID = newID } }

// WithStrictLateWrites makes answer writes to closed or expired sessions
// fail with ErrSessionClosed instead of being ignored.
func WithStrictLateWrites(b bool) Option { return func(e *Engine) { e.strict = b } }

func NewEngine(store Store, led ledger.Ledger, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		ledger:     led,
		gen:        gen,
		grader:     grading.NewGrader(),
		now:        time.Now,
		newID:      uuid.NewString,
		log:        logrus.StandardLogger(),
		reuse:      ReuseNew,
		codeLen:    DefaultCodeLength,
		genTimeout: defaultGenerateTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) PassThreshold() int { return e.grader.Threshold() }

// keyedMutex serialises work per key (session id) while leaving other keys
// free to run in parallel. Entries are dropped once nobody holds them.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = map[string]*keyedEntry{}
	}
	ent, ok := k.m[key]
	if !ok {
		ent = &keyedEntry{}
		k.m[key] = ent
	}
	ent.refs++
	k.mu.Unlock()

	ent.mu.Lock()
	return func() {
		ent.mu.Unlock()
		k.mu.Lock()
		ent.refs--
		if ent.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

// RemainingSeconds reports the time left on s by the engine's clock.
func (e *Engine) RemainingSeconds(s Session) int { return RemainingSeconds(e.now(), s) }
