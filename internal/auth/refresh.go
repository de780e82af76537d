package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// NewTokenID gera identificador aleatório e não adivinhável para refresh tokens.
func NewTokenID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
