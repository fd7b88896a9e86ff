package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/skillassess/internal/exam"
)

const maxBody = 1 << 20

// flexInt accepts 5, "5" and " 5 "; browser forms send numbers as strings.
type flexInt struct {
	v   int
	set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		b = []byte(s)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("not a whole number: %s", b)
	}
	f.v, f.set = n, true
	return nil
}

func (f flexInt) or(def int) int {
	if !f.set {
		return def
	}
	return f.v
}

const (
	defaultSkills       = "General Programming"
	defaultDifficulty   = exam.DifficultyMedium
	defaultNumQuestions = 5
	defaultTimeLimit    = 10
	defaultCandidate    = "Guest"
)

type createTestRequest struct {
	Skills       string  `json:"skills" validate:"max=500"`
	Difficulty   string  `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	NumQuestions flexInt `json:"numQuestions"`
	TimeLimit    flexInt `json:"timeLimit"`
}

func (r createTestRequest) spec() exam.TemplateSpec {
	skills := r.Skills
	if strings.TrimSpace(skills) == "" {
		skills = defaultSkills
	}
	d := exam.Difficulty(r.Difficulty)
	if d == "" {
		d = defaultDifficulty
	}
	return exam.TemplateSpec{
		Skills:       exam.SplitSkills(skills),
		Difficulty:   d,
		NumQuestions: r.NumQuestions.or(defaultNumQuestions),
		TimeLimitMin: r.TimeLimit.or(defaultTimeLimit),
	}
}

type submitTestRequest struct {
	TestID        string            `json:"testId" validate:"required"`
	CandidateName string            `json:"candidateName" validate:"max=120"`
	SessionID     string            `json:"sessionId" validate:"omitempty,uuid"`
	Answers       map[string]string `json:"answers"`
}

type openSessionRequest struct {
	CandidateName string `json:"candidateName" validate:"required,max=120"`
}

type answersRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so errors match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs its validate tags. Failures
// come back as exam validation errors so they map to 400.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return &exam.ValidationError{Reason: "bad json: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &exam.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
		}
		return &exam.ValidationError{Reason: err.Error()}
	}
	return nil
}
