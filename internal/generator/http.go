package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/skillassess/internal/exam"
)

type HTTPConfig struct {
	URL string
	// Token endpoint and credentials are optional; when TokenURL is set the
	// client authenticates with the OAuth2 client-credentials grant.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPGenerator asks a remote service for questions.
//
// Request:  POST URL {"skills":[...],"difficulty":"Medium","count":5}
// Response: {"questions":[{"id","skill","question","options","correct_answer"}]}
type HTTPGenerator struct {
	url  string
	http *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTPGenerator {
	h := &http.Client{}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &HTTPGenerator{url: cfg.URL, http: h}
}

type generateBody struct {
	Skills     []string `json:"skills"`
	Difficulty string   `json:"difficulty"`
	Count      int      `json:"count"`
}

type generateResponse struct {
	Questions []exam.Question `json:"questions"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req exam.GenerateRequest) ([]exam.Question, error) {
	body, err := json.Marshal(generateBody{
		Skills:     req.Skills,
		Difficulty: string(req.Difficulty),
		Count:      req.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", exam.ErrGeneration, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", exam.ErrGeneration, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := g.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: generate: %v", exam.ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: generate: %s", exam.ErrUnavailable, res.Status)
	case res.StatusCode/100 != 2:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: generate: %s: %s", exam.ErrGeneration, res.Status, bytes.TrimSpace(msg))
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", exam.ErrGeneration, err)
	}
	return out.Questions, nil
}
