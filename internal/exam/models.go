package exam

import (
	"time"

	"github.com/mind-engage/skillassess/internal/grading"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Question struct {
	ID      string   `json:"id"`
	Skill   string   `json:"skill"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Correct string   `json:"correct_answer"` // never leaves the engine; see QuestionView
}

func (q Question) hasOption(v string) bool {
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Template is an issued test bound to an access code. Immutable once stored.
type Template struct {
	Code         string     `json:"id"`
	Skills       []string   `json:"skills"`
	Difficulty   Difficulty `json:"difficulty"`
	TimeLimitMin int        `json:"timeLimit"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (t Template) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitMin) * time.Minute
}

func (t Template) question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (t Template) gradingItems() []grading.Item {
	out := make([]grading.Item, len(t.Questions))
	for i, q := range t.Questions {
		out[i] = grading.Item{ID: q.ID, Correct: q.Correct}
	}
	return out
}

// QuestionView is the candidate-facing projection of a Question.
type QuestionView struct {
	ID      string   `json:"id"`
	Skill   string   `json:"skill"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// TemplateView is the candidate-facing projection of a Template.
type TemplateView struct {
	Code         string         `json:"id"`
	Skills       []string       `json:"skills"`
	Difficulty   Difficulty     `json:"difficulty"`
	TimeLimitMin int            `json:"timeLimit"`
	Questions    []QuestionView `json:"questions"`
}

func (t Template) View() TemplateView {
	qs := make([]QuestionView, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = QuestionView{
			ID:      q.ID,
			Skill:   q.Skill,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		}
	}
	return TemplateView{
		Code:         t.Code,
		Skills:       append([]string(nil), t.Skills...),
		Difficulty:   t.Difficulty,
		TimeLimitMin: t.TimeLimitMin,
		Questions:    qs,
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSubmitted Status = "submitted"
)

type Session struct {
	ID            string            `json:"sessionId"`
	Code          string            `json:"testId"`
	CandidateName string            `json:"candidateName"`
	Status        Status            `json:"status"`
	Answers       map[string]string `json:"answers"`
	StartedAt     time.Time         `json:"startedAt"`
	Deadline      time.Time         `json:"deadline"`
	SubmittedAt   *time.Time        `json:"submittedAt,omitempty"`
	Forced        bool              `json:"forced"`
	Result        *grading.Result   `json:"result,omitempty"`
	LedgerSeq     int64             `json:"-"`
}

func (s Session) clone() Session {
	out := s
	out.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	if s.SubmittedAt != nil {
		at := *s.SubmittedAt
		out.SubmittedAt = &at
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}

func (t Template) clone() Template {
	out := t
	out.Skills = append([]string(nil), t.Skills...)
	out.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

// TemplateSpec is what an issuer asks for when creating a test.
type TemplateSpec struct {
	Skills       []string
	Difficulty   Difficulty
	NumQuestions int
	TimeLimitMin int
}

// GenerateRequest is passed to the question generator.
type GenerateRequest struct {
	Skills     []string
	Difficulty Difficulty
	Count      int
}
