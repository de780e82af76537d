package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpcoop/portal/internal/util"
)

var testStart = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, secret string, clock util.Clock) *JWTManager {
	t.Helper()
	mgr, err := NewJWTManager(secret, "HS256", clock)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return mgr
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clock := util.NewManualClock(testStart)
	mgr := newTestManager(t, strings.Repeat("k", 32), clock)

	claims := mgr.NewClaims(TokenRefresh, "user-1", time.Hour)
	claims.Role = RoleBoard
	claims.ID = "jti-123"

	token, err := mgr.Encode(claims)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := mgr.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Subject != "user-1" || got.Role != RoleBoard || got.Type != TokenRefresh || got.TokenID() != "jti-123" {
		t.Fatalf("unexpected claims after round trip: %+v", got)
	}
	if !got.ExpiresAt.Equal(testStart.Add(time.Hour)) {
		t.Fatalf("expiry mismatch: got %v", got.ExpiresAt.Time)
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	clock := util.NewManualClock(testStart)
	signer := newTestManager(t, strings.Repeat("a", 32), clock)
	verifier := newTestManager(t, strings.Repeat("b", 32), clock)

	claims := signer.NewClaims(TokenAccess, "user-1", time.Minute)
	claims.Role = RoleRegular
	token, err := signer.Encode(claims)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := verifier.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeRejectsOtherAlgorithm(t *testing.T) {
	clock := util.NewManualClock(testStart)
	secret := strings.Repeat("a", 32)
	signer, err := NewJWTManager(secret, "HS512", clock)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	verifier := newTestManager(t, secret, clock)

	claims := signer.NewClaims(TokenAccess, "user-1", time.Minute)
	token, err := signer.Encode(claims)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := verifier.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512 token, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	mgr := newTestManager(t, strings.Repeat("a", 32), util.NewManualClock(testStart))
	for _, input := range []string{"", "not.a.jwt", "invalid_token"} {
		if _, err := mgr.Decode(input); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q): expected ErrInvalidToken, got %v", input, err)
		}
	}
}

func TestDecodeExpired(t *testing.T) {
	clock := util.NewManualClock(testStart)
	mgr := newTestManager(t, strings.Repeat("a", 32), clock)

	token, err := mgr.Encode(mgr.NewClaims(TokenAccess, "user-1", time.Minute))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := mgr.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestDecodeRejectsUnknownRoleAndType(t *testing.T) {
	secret := strings.Repeat("a", 32)
	mgr := newTestManager(t, secret, util.NewManualClock(testStart))
	exp := testStart.Add(time.Hour).Unix()

	cases := map[string]jwt.MapClaims{
		"unknown role": {"sub": "u1", "type": "access", "role": "superuser", "exp": exp},
		"unknown type": {"sub": "u1", "type": "session", "role": "admin", "exp": exp},
		"missing type": {"sub": "u1", "role": "admin", "exp": exp},
		"missing exp":  {"sub": "u1", "type": "access", "role": "admin"},
	}

	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := mgr.Decode(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestEncodeRejectsInvalidClaims(t *testing.T) {
	mgr := newTestManager(t, strings.Repeat("a", 32), util.NewManualClock(testStart))

	if _, err := mgr.Encode(mgr.NewClaims(TokenType("session"), "u1", time.Minute)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := mgr.Encode(mgr.NewClaims(TokenAccess, "u1", -time.Minute)); err == nil {
		t.Fatalf("expected error for past expiry")
	}
	if _, err := mgr.Encode(Claims{Type: TokenAccess}); err == nil {
		t.Fatalf("expected error for missing expiry")
	}
}

func TestIsExpired(t *testing.T) {
	clock := util.NewManualClock(testStart)
	secret := strings.Repeat("a", 32)
	mgr := newTestManager(t, secret, clock)

	token, err := mgr.Encode(mgr.NewClaims(TokenReset, "membro@example.com", 3*time.Minute))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if mgr.IsExpired(token) {
		t.Fatalf("fresh token reported as expired")
	}

	clock.Advance(3 * time.Minute)
	if mgr.IsExpired(token) {
		t.Fatalf("token at exact expiry second should not be past expiry")
	}

	clock.Advance(time.Second)
	if !mgr.IsExpired(token) {
		t.Fatalf("expected token past expiry to be expired")
	}

	if !mgr.IsExpired("invalid_token") {
		t.Fatalf("undecodable token must be treated as expired")
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "type": "reset"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !mgr.IsExpired(noExp) {
		t.Fatalf("token without exp must be treated as expired")
	}
}

func TestNewJWTManagerValidation(t *testing.T) {
	if _, err := NewJWTManager("", "HS256", nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewJWTManager(strings.Repeat("a", 32), "RS256", nil); err == nil {
		t.Fatalf("expected error for asymmetric algorithm")
	}
}
