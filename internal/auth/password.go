package auth

import (
	"crypto/rand"

	"github.com/alexedwards/argon2id"
)

// DefaultParams são os parâmetros Argon2id usados em produção.
var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher gera e verifica hashes Argon2id de senha + salt do usuário.
type Hasher struct {
	params *argon2id.Params
}

// NewHasher cria hasher com os parâmetros informados (nil usa DefaultParams).
func NewHasher(params *argon2id.Params) *Hasher {
	if params == nil {
		params = DefaultParams
	}
	return &Hasher{params: params}
}

// Hash gera um hash Argon2id (inclui os parâmetros e um salt interno aleatório).
func (h *Hasher) Hash(password, salt string) (string, error) {
	return argon2id.CreateHash(password+salt, h.params)
}

// Verify compara a senha com o hash; qualquer falha de parsing conta como divergência.
func (h *Hasher) Verify(encodedHash, password, salt string) bool {
	ok, err := argon2id.ComparePasswordAndHash(password+salt, encodedHash)
	if err != nil {
		return false
	}
	return ok
}

// NewSalt gera salt aleatório por usuário.
func NewSalt() string {
	return rand.Text()
}
