package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	DefaultShortCodeLength = 6
	alphabet               = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator produces candidate short codes. Candidates are not unique on
// their own; the storage backend decides.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// RandomGenerator draws every character uniformly from the 62 symbol alphabet.
type RandomGenerator struct{}

func (RandomGenerator) Generate(length int) (string, error) {
	return GenerateShortCodeWithLength(length)
}

func GenerateShortCodeWithLength(length int) (string, error) {
	code := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := range code {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = alphabet[randomIndex.Int64()]
	}

	return string(code), nil
}

// IsValidShortCode reports whether code could have come from the generator:
// non-empty, at most maxLength characters, alphabet only.
func IsValidShortCode(code string, maxLength int) bool {
	if code == "" || len(code) > maxLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
