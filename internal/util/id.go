package util

import "github.com/google/uuid"

// CanonicalID devolve o UUID na forma canônica (minúsculas, com hífens). Aceita
// as variantes que uuid.Parse aceita, como maiúsculas, chaves e urn:uuid:.
func CanonicalID(value string) (string, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
