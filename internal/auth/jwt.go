package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpcoop/portal/internal/util"
)

// TokenType diferencia os usos de um token assinado.
type TokenType string

const (
	TokenAccess      TokenType = "access"
	TokenRefresh     TokenType = "refresh"
	TokenActivation  TokenType = "activation"
	TokenUnsubscribe TokenType = "unsubscribe"
	TokenReset       TokenType = "reset"
)

// Valid indica se o tipo é conhecido.
func (t TokenType) Valid() bool {
	switch t {
	case TokenAccess, TokenRefresh, TokenActivation, TokenUnsubscribe, TokenReset:
		return true
	}
	return false
}

// Claims representa as informações presentes em um JWT emitido pelo portal.
// Para tokens de uso único o subject é o e-mail e UserID carrega o principal.
type Claims struct {
	Type   TokenType `json:"type"`
	Role   Role      `json:"role,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenID retorna o identificador registrado no ledger (apenas refresh).
func (c *Claims) TokenID() string {
	return c.ID
}

var signingMethods = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret []byte
	method jwt.SigningMethod
	clock  util.Clock
}

// NewJWTManager cria o gerenciador com segredo, algoritmo HMAC e relógio.
func NewJWTManager(secret, algorithm string, clock util.Clock) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("segredo JWT obrigatório")
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("algoritmo JWT não suportado: %s", algorithm)
	}
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &JWTManager{secret: []byte(secret), method: method, clock: clock}, nil
}

// NewClaims monta claims com emissão e expiração a partir do relógio.
func (m *JWTManager) NewClaims(tokenType TokenType, subject string, ttl time.Duration) Claims {
	now := m.clock.Now()
	return Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// Encode assina as claims; a assinatura cobre todo o conjunto, inclusive exp.
func (m *JWTManager) Encode(claims Claims) (string, error) {
	if !claims.Type.Valid() {
		return "", fmt.Errorf("tipo de token desconhecido: %q", claims.Type)
	}
	if claims.ExpiresAt == nil {
		return "", errors.New("token sem expiração")
	}
	if !claims.ExpiresAt.After(m.clock.Now()) {
		return "", errors.New("expiração deve estar no futuro")
	}

	token := jwt.NewWithClaims(m.method, claims)
	return token.SignedString(m.secret)
}

// Decode verifica assinatura, algoritmo, estrutura e expiração.
// Retorna ErrTokenExpired quando apenas a expiração falhou e ErrInvalidToken
// para qualquer outro problema.
func (m *JWTManager) Decode(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, m.key)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || !claims.Type.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IsExpired trata token indecifrável ou sem exp como expirado.
// Não serve para distinguir token forjado de token vencido.
func (m *JWTManager) IsExpired(tokenString string) bool {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, m.key); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return m.clock.Now().Unix() > claims.ExpiresAt.Unix()
}

func (m *JWTManager) key(*jwt.Token) (interface{}, error) {
	return m.secret, nil
}
