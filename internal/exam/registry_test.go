package exam_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillassess/internal/exam"
	"github.com/mind-engage/skillassess/internal/ledger"
)

func TestCreateAndResolveTemplate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code, err := h.engine.CreateTemplate(ctx, exam.TemplateSpec{
		Skills: []string{"Go", "SQL"}, Difficulty: exam.DifficultyHard, NumQuestions: 4, TimeLimitMin: 20,
	})
	require.NoError(t, err)
	assert.Len(t, code, exam.DefaultCodeLength)
	assert.Equal(t, strings.ToUpper(code), code)

	view, err := h.engine.ResolveTemplate(ctx, "  "+strings.ToLower(code)+" ")
	require.NoError(t, err)
	assert.Equal(t, code, view.Code)
	assert.Equal(t, []string{"Go", "SQL"}, view.Skills)
	assert.Equal(t, exam.DifficultyHard, view.Difficulty)
	assert.Equal(t, 20, view.TimeLimitMin)
	require.Len(t, view.Questions, 4)
	assert.Equal(t, "q1", view.Questions[0].ID)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct")
}

func TestResolveUnknownCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ResolveTemplate(context.Background(), "ZZZZ2345")
	assert.ErrorIs(t, err, exam.ErrNotFound)

	_, err = h.engine.ResolveTemplate(context.Background(), "   ")
	assert.ErrorIs(t, err, exam.ErrNotFound)
}

func TestCreateTemplateValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]exam.TemplateSpec{
		"no skills":      {Difficulty: exam.DifficultyEasy, NumQuestions: 1, TimeLimitMin: 1},
		"blank skill":    {Skills: []string{" "}, Difficulty: exam.DifficultyEasy, NumQuestions: 1, TimeLimitMin: 1},
		"difficulty":     {Skills: []string{"Go"}, Difficulty: "Brutal", NumQuestions: 1, TimeLimitMin: 1},
		"zero questions": {Skills: []string{"Go"}, Difficulty: exam.DifficultyEasy, NumQuestions: 0, TimeLimitMin: 1},
		"zero minutes":   {Skills: []string{"Go"}, Difficulty: exam.DifficultyEasy, NumQuestions: 1, TimeLimitMin: 0},
		"too long":       {Skills: []string{"Go"}, Difficulty: exam.DifficultyEasy, NumQuestions: 1, TimeLimitMin: 24*60 + 1},
	}
	for name, sp := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.engine.CreateTemplate(context.Background(), sp)
			assert.ErrorIs(t, err, exam.ErrValidation)
			var verr *exam.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestCreateTemplateRejectsBadGeneratorOutput(t *testing.T) {
	cases := map[string]func([]exam.Question) []exam.Question{
		"short count": func(qs []exam.Question) []exam.Question {
			return qs[:2]
		},
		"duplicate id": func(qs []exam.Question) []exam.Question {
			qs[1].ID = qs[0].ID
			return qs
		},
		"one option": func(qs []exam.Question) []exam.Question {
			qs[0].Options = []string{"a"}
			qs[0].Correct = "a"
			return qs
		},
		"repeated option": func(qs []exam.Question) []exam.Question {
			qs[0].Options = []string{"a", "a"}
			return qs
		},
		"key not offered": func(qs []exam.Question) []exam.Question {
			qs[2].Correct = "z"
			return qs
		},
		"empty prompt": func(qs []exam.Question) []exam.Question {
			qs[0].Prompt = " "
			return qs
		},
	}
	for name, mangle := range cases {
		t.Run(name, func(t *testing.T) {
			gen := exam.GeneratorFunc(func(_ context.Context, req exam.GenerateRequest) ([]exam.Question, error) {
				return mangle(fakeQuestions(req.Count)), nil
			})
			store := &countingStore{Store: exam.NewInMemoryStore()}
			h := newHarnessWith(t, store, ledger.NewInMemory(), gen)

			_, err := h.engine.CreateTemplate(context.Background(), spec(3, 10))
			assert.ErrorIs(t, err, exam.ErrGeneration)
			assert.Zero(t, store.puts.Load(), "nothing may be stored on failure")
		})
	}
}

func TestCreateTemplateGeneratorErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"plain", errors.New("model refused"), exam.ErrGeneration},
		{"generation", exam.ErrGeneration, exam.ErrGeneration},
		{"unavailable", exam.ErrUnavailable, exam.ErrUnavailable},
		{"canceled", fmt.Errorf("call model: %w", context.Canceled), exam.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := exam.GeneratorFunc(func(context.Context, exam.GenerateRequest) ([]exam.Question, error) {
				return nil, tc.err
			})
			store := &countingStore{Store: exam.NewInMemoryStore()}
			h := newHarnessWith(t, store, ledger.NewInMemory(), gen)
			_, err := h.engine.CreateTemplate(context.Background(), spec(3, 10))
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, store.puts.Load())
		})
	}
}

func TestCreateTemplateGeneratorTimeout(t *testing.T) {
	slow := exam.GeneratorFunc(func(ctx context.Context, _ exam.GenerateRequest) ([]exam.Question, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarnessWith(t, exam.NewInMemoryStore(), ledger.NewInMemory(), slow, exam.WithGenerateTimeout(20*time.Millisecond))

	_, err := h.engine.CreateTemplate(context.Background(), spec(3, 10))
	assert.ErrorIs(t, err, exam.ErrUnavailable)
}

func TestCreateTemplateCallerCancelIsNotGenerationError(t *testing.T) {
	started := make(chan struct{})
	slow := exam.GeneratorFunc(func(ctx context.Context, _ exam.GenerateRequest) ([]exam.Question, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarnessWith(t, exam.NewInMemoryStore(), ledger.NewInMemory(), slow)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := h.engine.CreateTemplate(ctx, spec(3, 10))
	assert.ErrorIs(t, err, exam.ErrUnavailable)
	assert.NotErrorIs(t, err, exam.ErrGeneration)
}

func TestCreateTemplateRetriesCollisions(t *testing.T) {
	store := &countingStore{Store: exam.NewInMemoryStore(), takenFor: 2}
	h := newHarnessWith(t, store, ledger.NewInMemory(), &fakeGen{})

	code, err := h.engine.CreateTemplate(context.Background(), spec(3, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 3, store.puts.Load())

	_, err = h.engine.ResolveTemplate(context.Background(), code)
	assert.NoError(t, err)
}

func TestCreateTemplateGivesUpAfterBoundedCollisions(t *testing.T) {
	store := &countingStore{Store: exam.NewInMemoryStore(), takenFor: 100}
	h := newHarnessWith(t, store, ledger.NewInMemory(), &fakeGen{})

	_, err := h.engine.CreateTemplate(context.Background(), spec(3, 10))
	assert.ErrorIs(t, err, exam.ErrUnavailable)
	assert.EqualValues(t, 5, store.puts.Load())
}

func TestEachCreateMintsNewCode(t *testing.T) {
	h := newHarness(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := h.mustCreate(t, 2, 5)
		assert.False(t, seen[code], "code %s reissued", code)
		seen[code] = true
	}
}

func TestSplitSkills(t *testing.T) {
	assert.Equal(t, []string{"Python", "React"}, exam.SplitSkills(" Python, React ,python,, "))
	assert.Empty(t, exam.SplitSkills(" , "))
}
