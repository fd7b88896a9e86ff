package exam

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// codeAlphabet drops 0/O and 1/I/L so codes survive manual transcription.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength = 8
	minCodeLength     = 6
	maxCodeLength     = 12
)

// NewCode returns a random access code of length n drawn from codeAlphabet.
func NewCode(n int) (string, error) {
	if n < minCodeLength || n > maxCodeLength {
		n = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode canonicalises user input: trimmed and upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
