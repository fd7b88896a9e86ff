// Package ledger keeps the append-only record of graded submissions that the
// issuer dashboard reads.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

type Entry struct {
	Seq           int64          `json:"seq"`
	SessionID     string         `json:"sessionId"`
	TestCode      string         `json:"testId"`
	CandidateName string         `json:"candidateName"`
	Score         int            `json:"score"`
	Total         int            `json:"total"`
	Percentage    int            `json:"percentage"`
	Status        grading.Status `json:"status"`
	Forced        bool           `json:"forced"`
	GradedAt      time.Time      `json:"submittedAt"`
}

// NewEntry projects a graded result into a ledger row. Seq is assigned by Append.
func NewEntry(sessionID, code, candidate string, res grading.Result, forced bool, at time.Time) Entry {
	return Entry{
		SessionID:     sessionID,
		TestCode:      code,
		CandidateName: candidate,
		Score:         res.Score,
		Total:         res.Total,
		Percentage:    res.Percentage,
		Status:        res.Status,
		Forced:        forced,
		GradedAt:      at,
	}
}

// Ledger never updates or removes an entry once appended. There is at most
// one entry per session: appending a session that is already recorded
// returns the stored entry.
type Ledger interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}

type memoryLedger struct {
	mu        sync.RWMutex
	entries   []Entry
	bySession map[string]int
}

func NewInMemory() Ledger {
	return &memoryLedger{bySession: map[string]int{}}
}

func (m *memoryLedger) Append(_ context.Context, e Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.bySession[e.SessionID]; ok {
		return m.entries[i], nil
	}
	m.bySession[e.SessionID] = len(m.entries)
	e.Seq = int64(len(m.entries)) + 1
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memoryLedger) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}
