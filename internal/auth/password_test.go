package auth

import (
	"testing"

	"github.com/alexedwards/argon2id"
)

var cheapParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	hasher := NewHasher(cheapParams)
	salt := NewSalt()

	first, err := hasher.Hash("SenhaForte123!", salt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := hasher.Hash("SenhaForte123!", salt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected different encodings for identical input")
	}

	for _, encoded := range []string{first, second} {
		if !hasher.Verify(encoded, "SenhaForte123!", salt) {
			t.Fatalf("expected verification to succeed")
		}
	}
}

func TestVerifyRejectsMismatch(t *testing.T) {
	hasher := NewHasher(cheapParams)
	salt := NewSalt()
	encoded, err := hasher.Hash("SenhaForte123!", salt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if hasher.Verify(encoded, "OutraSenha123!", salt) {
		t.Fatalf("wrong password accepted")
	}
	if hasher.Verify(encoded, "SenhaForte123!", NewSalt()) {
		t.Fatalf("wrong salt accepted")
	}
	if hasher.Verify("not-a-hash", "SenhaForte123!", salt) {
		t.Fatalf("malformed hash accepted")
	}
}

func TestNewTokenIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewTokenID()
		if err != nil {
			t.Fatalf("NewTokenID: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate token id %s", id)
		}
		seen[id] = struct{}{}
	}
}
