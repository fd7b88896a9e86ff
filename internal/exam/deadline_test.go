package exam_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/skillassess/internal/exam"
)

func TestDeadlineArithmetic(t *testing.T) {
	tpl := exam.Template{TimeLimitMin: 10}
	s := exam.Session{StartedAt: t0, Deadline: exam.Deadline(t0, tpl)}
	assert.Equal(t, t0.Add(10*time.Minute), s.Deadline)

	cases := []struct {
		after   time.Duration
		secs    int
		expired bool
	}{
		{0, 600, false},
		{1500 * time.Millisecond, 598, false},
		{599 * time.Second, 1, false},
		{600 * time.Second, 0, true},
		{601 * time.Second, 0, true},
		{time.Hour, 0, true},
	}
	for _, tc := range cases {
		now := t0.Add(tc.after)
		assert.Equal(t, tc.secs, exam.RemainingSeconds(now, s), tc.after.String())
		assert.Equal(t, tc.expired, exam.Expired(now, s), tc.after.String())
		assert.GreaterOrEqual(t, exam.Remaining(now, s), time.Duration(0))
	}
}

func TestNewCode(t *testing.T) {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	for _, n := range []int{6, 8, 12} {
		code, err := exam.NewCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected %q in %s", r, code)
		}
	}
	for _, n := range []int{0, 3, 40} {
		code, err := exam.NewCode(n)
		require.NoError(t, err)
		assert.Len(t, code, exam.DefaultCodeLength)
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABCD2345", exam.NormalizeCode("  abcd2345\n"))
	assert.Equal(t, "", exam.NormalizeCode("   "))
}
