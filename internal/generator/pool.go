// Package generator holds the question-set generators the engine can use:
// a built-in pool for offline use and an HTTP client for a remote service.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mind-engage/skillassess/internal/exam"
)

type poolItem struct {
	prompt  string // %s is the skill
	options []string
	correct string
}

var basePool = []poolItem{
	{
		prompt:  "Which of the following is a primary best practice when working with %s?",
		options: []string{"Efficient Resource Management", "Ignoring Documentation", "Hardcoding Values", "Manual Testing Only"},
		correct: "Efficient Resource Management",
	},
	{
		prompt:  "In a professional environment, how is %s typically version controlled?",
		options: []string{"Using Git", "Emailing zip files", "Saving on Desktop", "No version control needed"},
		correct: "Using Git",
	},
	{
		prompt:  "Which tool is most commonly associated with testing %s code?",
		options: []string{"Unit Testing Frameworks", "Notepad", "Calculator", "Social Media"},
		correct: "Unit Testing Frameworks",
	},
	{
		prompt:  "What is the main advantage of using %s in modern development?",
		options: []string{"Scalability", "Slower performance", "Harder to maintain", "Limited community support"},
		correct: "Scalability",
	},
	{
		prompt:  "What is a common error to avoid when implementing %s?",
		options: []string{"Memory leaks", "Proper indentation", "Commenting code", "Using meaningful variables"},
		correct: "Memory leaks",
	},
	{
		prompt:  "How should sensitive configuration data in %s be managed?",
		options: []string{"Environment variables", "Hardcoded in source", "Public comments", "Plain text files"},
		correct: "Environment variables",
	},
}

// PoolSize is how many questions the pool can produce per skill.
var PoolSize = len(basePool)

// Pool generates questions from a fixed technical pool, templated per skill.
// Questions rotate across skills so a multi-skill test covers each of them.
type Pool struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	shuffle bool
}

type PoolOption func(*Pool)

// WithSeed makes option order reproducible.
func WithSeed(seed int64) PoolOption {
	return func(p *Pool) { p.rnd = rand.New(rand.NewSource(seed)) }
}

// WithoutShuffle keeps options in pool order, correct answer first.
func WithoutShuffle() PoolOption {
	return func(p *Pool) { p.shuffle = false }
}

func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		shuffle: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pool) Generate(ctx context.Context, req exam.GenerateRequest) ([]exam.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Skills) == 0 {
		return nil, fmt.Errorf("%w: no skills requested", exam.ErrGeneration)
	}
	if max := PoolSize * len(req.Skills); req.Count > max {
		return nil, fmt.Errorf("%w: pool holds %d questions for %d skill(s), %d requested",
			exam.ErrGeneration, max, len(req.Skills), req.Count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]exam.Question, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		skill := req.Skills[i%len(req.Skills)]
		item := basePool[i/len(req.Skills)]
		opts := append([]string(nil), item.options...)
		if p.shuffle {
			p.rnd.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		}
		out = append(out, exam.Question{
			ID:      fmt.Sprintf("q%d", i+1),
			Skill:   skill,
			Prompt:  fmt.Sprintf(item.prompt, skill),
			Options: opts,
			Correct: item.correct,
		})
	}
	return out, nil
}
