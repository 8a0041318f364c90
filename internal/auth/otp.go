package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// MaxResetAttempts is how many guesses a single reset code accepts.
const MaxResetAttempts = 5

// CodeGenerator produces numeric password-reset codes.
type CodeGenerator struct {
	digits int
	ttl    time.Duration
}

func NewCodeGenerator(digits int, ttl time.Duration) *CodeGenerator {
	return &CodeGenerator{digits: digits, ttl: ttl}
}

// Generate creates a zero-padded numeric code using crypto/rand.
func (g *CodeGenerator) Generate() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%0*d", g.digits, n.Int64()), nil
}

func (g *CodeGenerator) TTL() time.Duration {
	return g.ttl
}

// HashResetCode is the form a reset code is stored and looked up in.
func HashResetCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}
