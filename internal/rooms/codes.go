package rooms

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Room ids avoid characters that read alike: 0/o and 1/i/l.
const codeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const (
	codeLength   = 7
	mintAttempts = 10
)

// Bytes at or above codeByteBound are rejected so every symbol is equally
// likely.
const codeByteBound = 256 - 256%len(codeAlphabet)

// newCode reads random bytes from src until it has codeLength unbiased
// symbols.
func newCode(src io.Reader) (string, error) {
	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(code) < codeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= codeByteBound {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}

// MintID returns a fresh room id that no live room is using. The room itself
// is only created when someone joins it.
func (g *Registry) MintID() (string, error) {
	for range mintAttempts {
		code, err := newCode(rand.Reader)
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		if g.Get(code) == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unused room id after %d attempts", mintAttempts)
}
