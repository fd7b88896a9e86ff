package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillassess/internal/exam"
)

func TestPoolTemplatesSkillAndKeepsCorrectAnswer(t *testing.T) {
	p := NewPool(WithSeed(7))
	qs, err := p.Generate(context.Background(), exam.GenerateRequest{
		Skills: []string{"Go"}, Difficulty: exam.DifficultyMedium, Count: 5,
	})
	require.NoError(t, err)
	require.Len(t, qs, 5)

	for i, q := range qs {
		assert.Equal(t, "q"+string(rune('1'+i)), q.ID)
		assert.Equal(t, "Go", q.Skill)
		assert.Contains(t, q.Prompt, "Go")
		assert.Contains(t, q.Options, q.Correct)
		assert.Len(t, q.Options, 4)
	}
	assert.Equal(t, "Using Git", qs[1].Correct)
}

func TestPoolRotatesAcrossSkills(t *testing.T) {
	p := NewPool(WithoutShuffle())
	qs, err := p.Generate(context.Background(), exam.GenerateRequest{
		Skills: []string{"Python", "React"}, Difficulty: exam.DifficultyEasy, Count: 4,
	})
	require.NoError(t, err)

	got := []string{qs[0].Skill, qs[1].Skill, qs[2].Skill, qs[3].Skill}
	assert.Equal(t, []string{"Python", "React", "Python", "React"}, got)
	// unshuffled options keep the correct answer first
	assert.Equal(t, qs[0].Correct, qs[0].Options[0])
	assert.Equal(t, qs[0].Correct, qs[1].Correct)
	assert.NotEqual(t, qs[0].Correct, qs[2].Correct)
}

func TestPoolRejectsMoreThanItHolds(t *testing.T) {
	p := NewPool()
	_, err := p.Generate(context.Background(), exam.GenerateRequest{
		Skills: []string{"Go"}, Count: PoolSize + 1,
	})
	assert.ErrorIs(t, err, exam.ErrGeneration)

	qs, err := p.Generate(context.Background(), exam.GenerateRequest{
		Skills: []string{"Go", "SQL"}, Count: 2 * PoolSize,
	})
	require.NoError(t, err)
	assert.Len(t, qs, 2*PoolSize)
}

func TestPoolSameSeedSameOrder(t *testing.T) {
	req := exam.GenerateRequest{Skills: []string{"Go"}, Count: 6}
	a, err := NewPool(WithSeed(42)).Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := NewPool(WithSeed(42)).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHTTPGeneratorDecodesQuestions(t *testing.T) {
	var got generateBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":[{"id":"a","skill":"Go","question":"2+2?","options":["3","4"],"correct_answer":"4"}]}`))
	}))
	defer srv.Close()

	g := NewHTTP(HTTPConfig{URL: srv.URL, Timeout: time.Second})
	qs, err := g.Generate(context.Background(), exam.GenerateRequest{
		Skills: []string{"Go"}, Difficulty: exam.DifficultyHard, Count: 1,
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "4", qs[0].Correct)
	assert.Equal(t, "2+2?", qs[0].Prompt)
	assert.Equal(t, generateBody{Skills: []string{"Go"}, Difficulty: "Hard", Count: 1}, got)
}

func TestHTTPGeneratorErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, "", exam.ErrUnavailable},
		{"throttled", http.StatusTooManyRequests, "", exam.ErrUnavailable},
		{"bad request", http.StatusBadRequest, "no skills", exam.ErrGeneration},
		{"garbage", http.StatusOK, "not json", exam.ErrGeneration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTP(HTTPConfig{URL: srv.URL}).Generate(context.Background(), exam.GenerateRequest{Skills: []string{"Go"}, Count: 1})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPGeneratorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(HTTPConfig{URL: url}).Generate(context.Background(), exam.GenerateRequest{Skills: []string{"Go"}, Count: 1})
	assert.ErrorIs(t, err, exam.ErrUnavailable)
}

func TestHTTPGeneratorUsesClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"questions":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewHTTP(HTTPConfig{
		URL:          srv.URL + "/generate",
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	})
	qs, err := g.Generate(context.Background(), exam.GenerateRequest{Skills: []string{"Go"}, Count: 1})
	require.NoError(t, err)
	assert.Empty(t, qs)
}
