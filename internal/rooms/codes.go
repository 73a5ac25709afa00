package rooms

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Codes are spelled with the throws themselves.
const alphabet = "RPS"

const codeLength = 4

var ErrInvalidCode = errors.New("invalid room code")

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode upper-cases a user supplied code and checks its shape.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(alphabet, code[i]) < 0 {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}
