package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Digits is the length of every generated code.
const Digits = 6

// Generator produces uniformly distributed numeric codes.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// Generate returns a zero-padded code in [0, 10^Digits).
func (g *Generator) Generate() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(Digits), nil)
	n, err := rand.Int(g.rand, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}
