package grading

// Item is the minimal view of a question needed for grading.
// Keep this in sync with exam.Question.
type Item struct {
	ID      string
	Correct string
}

type Status string

const (
	StatusPass Status = "Pass"
	StatusFail Status = "Fail"
)

// DefaultPassThreshold is the percentage at or above which a result passes.
const DefaultPassThreshold = 50

// Result is the graded outcome of one submitted session.
type Result struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Status     Status `json:"status"`
}

// Engine options

type Option func(*config)

type config struct {
	PassThreshold int
}

func WithPassThreshold(p int) Option { return func(c *config) { c.PassThreshold = p } }

// Grader scores a frozen answer map against an ordered answer key.
// It holds no mutable state and is safe for concurrent use.
type Grader struct {
	threshold int
}

func NewGrader(opts ...Option) *Grader {
	cfg := &config{PassThreshold: DefaultPassThreshold}
	for _, o := range opts {
		o(cfg)
	}
	return &Grader{threshold: cfg.PassThreshold}
}

func (g *Grader) Threshold() int { return g.threshold }

// Grade compares answers[item.ID] to item.Correct by exact value equality.
// Missing answers count as incorrect; Total is always len(items).
func (g *Grader) Grade(items []Item, answers map[string]string) Result {
	score := 0
	for _, it := range items {
		if a, ok := answers[it.ID]; ok && a == it.Correct {
			score++
		}
	}
	res := Result{Score: score, Total: len(items), Percentage: Percentage(score, len(items))}
	if res.Percentage >= g.threshold {
		res.Status = StatusPass
	} else {
		res.Status = StatusFail
	}
	return res
}

// Percentage returns round-half-up(100*score/total) using integer arithmetic,
// so 1/3 is 33, 2/3 is 67 and 1/8 is 13. A zero total yields 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*score + total) / (2 * total)
}
