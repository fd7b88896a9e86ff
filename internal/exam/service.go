package exam

import (
	"context"
	"sync"
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

type memoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
	sessions  map[string]Session
	order     []string // session ids in creation order
}

func NewInMemoryStore() Store {
	return &memoryStore{
		templates: map[string]Template{},
		sessions:  map[string]Session{},
	}
}

func (m *memoryStore) PutTemplate(_ context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.Code]; ok {
		return ErrCodeTaken
	}
	m.templates[t.Code] = t.clone()
	return nil
}

func (m *memoryStore) GetTemplate(_ context.Context, code string) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[code]
	if !ok {
		return Template{}, ErrNotFound
	}
	return t.clone(), nil
}

func (m *memoryStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[s.Code]; !ok {
		return ErrNotFound
	}
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	m.sessions[s.ID] = s.clone()
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.clone(), nil
}

func (m *memoryStore) FindActiveSession(_ context.Context, code, candidate string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.sessions[m.order[i]]
		if s.Code == code && s.CandidateName == candidate && s.Status == StatusActive {
			return s.clone(), nil
		}
	}
	return Session{}, ErrNotFound
}

func (m *memoryStore) SaveAnswers(_ context.Context, id string, answers map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusActive {
		return ErrSessionClosed
	}
	for qid, opt := range answers {
		s.Answers[qid] = opt
	}
	m.sessions[id] = s
	return nil
}

func (m *memoryStore) MarkSubmitted(_ context.Context, id string, res grading.Result, at time.Time, forced bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.Status != StatusActive {
		return false, nil
	}
	s.Status = StatusSubmitted
	s.Result = &res
	s.SubmittedAt = &at
	s.Forced = forced
	m.sessions[id] = s
	return true, nil
}

func (m *memoryStore) SetLedgerSeq(_ context.Context, id string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LedgerSeq = seq
	m.sessions[id] = s
	return nil
}

func (m *memoryStore) ListExpired(_ context.Context, now time.Time) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, id := range m.order {
		s := m.sessions[id]
		if s.Status == StatusActive && !now.Before(s.Deadline) {
			out = append(out, s.clone())
		}
	}
	return out, nil
}

func (m *memoryStore) ListUnledgered(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, id := range m.order {
		s := m.sessions[id]
		if s.Status == StatusSubmitted && s.LedgerSeq == 0 {
			out = append(out, s.clone())
		}
	}
	return out, nil
}
