package exam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	maxQuestions    = 100
	maxTimeLimitMin = 24 * 60
	maxSkills       = 20
)

// SplitSkills turns "Python, React" into ["Python", "React"], dropping
// blanks and case-insensitive duplicates while keeping first spelling.
func SplitSkills(raw string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

func (spec TemplateSpec) validate() error {
	if len(spec.Skills) == 0 {
		return invalid("skills", "at least one skill is required")
	}
	if len(spec.Skills) > maxSkills {
		return invalid("skills", "at most %d skills", maxSkills)
	}
	for _, s := range spec.Skills {
		if strings.TrimSpace(s) == "" {
			return invalid("skills", "skill names must not be blank")
		}
	}
	if !spec.Difficulty.Valid() {
		return invalid("difficulty", "must be one of Easy, Medium, Hard")
	}
	if spec.NumQuestions < 1 || spec.NumQuestions > maxQuestions {
		return invalid("numQuestions", "must be between 1 and %d", maxQuestions)
	}
	if spec.TimeLimitMin < 1 || spec.TimeLimitMin > maxTimeLimitMin {
		return invalid("timeLimit", "must be between 1 and %d minutes", maxTimeLimitMin)
	}
	return nil
}

// checkGenerated enforces the question invariants before anything is stored.
func checkGenerated(qs []Question, want int) error {
	if len(qs) != want {
		return fmt.Errorf("%w: generator returned %d of %d questions", ErrGeneration, len(qs), want)
	}
	ids := map[string]bool{}
	for i, q := range qs {
		if q.ID == "" || ids[q.ID] {
			return fmt.Errorf("%w: question %d has a missing or duplicate id", ErrGeneration, i)
		}
		ids[q.ID] = true
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %s has no prompt", ErrGeneration, q.ID)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %s needs at least two options", ErrGeneration, q.ID)
		}
		opts := map[string]bool{}
		for _, o := range q.Options {
			if opts[o] {
				return fmt.Errorf("%w: question %s repeats option %q", ErrGeneration, q.ID, o)
			}
			opts[o] = true
		}
		if !opts[q.Correct] {
			return fmt.Errorf("%w: question %s correct answer is not an option", ErrGeneration, q.ID)
		}
	}
	return nil
}

// CreateTemplate generates a question set, stores it under a fresh access
// code and returns the code. Nothing is stored when generation fails.
func (e *Engine) CreateTemplate(ctx context.Context, spec TemplateSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	gctx, cancel := context.WithTimeout(ctx, e.genTimeout)
	qs, err := e.gen.Generate(gctx, GenerateRequest{
		Skills:     spec.Skills,
		Difficulty: spec.Difficulty,
		Count:      spec.NumQuestions,
	})
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, ErrUnavailable):
			e.metrics.GenerationFailed("unavailable")
			return "", err
		case errors.Is(err, context.DeadlineExceeded):
			e.metrics.GenerationFailed("unavailable")
			return "", fmt.Errorf("%w: generator timed out: %v", ErrUnavailable, err)
		case errors.Is(err, context.Canceled):
			e.metrics.GenerationFailed("unavailable")
			return "", fmt.Errorf("%w: generator call canceled: %v", ErrUnavailable, err)
		case errors.Is(err, ErrGeneration):
			e.metrics.GenerationFailed("generation")
			return "", err
		default:
			e.metrics.GenerationFailed("generation")
			return "", fmt.Errorf("%w: %v", ErrGeneration, err)
		}
	}
	if err := checkGenerated(qs, spec.NumQuestions); err != nil {
		e.metrics.GenerationFailed("generation")
		return "", err
	}

	t := Template{
		Skills:       append([]string(nil), spec.Skills...),
		Difficulty:   spec.Difficulty,
		TimeLimitMin: spec.TimeLimitMin,
		Questions:    qs,
		CreatedAt:    e.now().UTC(),
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewCode(e.codeLen)
		if err != nil {
			return "", fmt.Errorf("%w: access code entropy: %v", ErrUnavailable, err)
		}
		t.Code = code
		err = e.store.PutTemplate(ctx, t)
		if errors.Is(err, ErrCodeTaken) {
			e.log.WithField("code", code).Warn("access code collision, retrying")
			continue
		}
		if err != nil {
			return "", unavailable("store template", err)
		}
		e.metrics.TemplateCreated()
		e.log.WithFields(logrus.Fields{
			"code":       code,
			"skills":     strings.Join(t.Skills, ","),
			"difficulty": t.Difficulty,
			"questions":  len(qs),
			"time_limit": t.TimeLimitMin,
		}).Info("template issued")
		return code, nil
	}
	return "", fmt.Errorf("%w: no free access code after %d attempts", ErrUnavailable, maxCodeAttempts)
}

// ResolveTemplate returns the candidate-safe view of the template behind code.
func (e *Engine) ResolveTemplate(ctx context.Context, code string) (TemplateView, error) {
	t, err := e.template(ctx, code)
	if err != nil {
		return TemplateView{}, err
	}
	return t.View(), nil
}

// template is the internal accessor that keeps correct answers for grading.
func (e *Engine) template(ctx context.Context, code string) (Template, error) {
	c := NormalizeCode(code)
	if c == "" {
		return Template{}, fmt.Errorf("test %q: %w", code, ErrNotFound)
	}
	t, err := e.store.GetTemplate(ctx, c)
	if errors.Is(err, ErrNotFound) {
		return Template{}, fmt.Errorf("test %q: %w", c, ErrNotFound)
	}
	if err != nil {
		return Template{}, unavailable("load template", err)
	}
	return t, nil
}
