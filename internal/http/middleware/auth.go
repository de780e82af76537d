package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/repo"
)

type contextKey string

const (
	contextKeyPrincipal  contextKey = "principal"
	contextKeyCallerSlot contextKey = "caller_slot"
)

// CallerResolver transforma o bearer token no principal chamador.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (repo.Principal, error)
}

// Auth exige bearer token válido e injeta o principal no contexto.
func Auth(resolver CallerResolver) func(http.Handler) http.Handler {
	return authenticate(resolver, true)
}

// OptionalAuth aceita requisições anônimas; token presente precisa ser válido.
func OptionalAuth(resolver CallerResolver) func(http.Handler) http.Handler {
	return authenticate(resolver, false)
}

func authenticate(resolver CallerResolver, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				if required {
					writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.ResolveCaller(r.Context(), token)
			if err != nil {
				WriteAuthError(w, err)
				return
			}

			recordCaller(r.Context(), principal.ID.String())
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// RequireRoles exige que o papel do chamador cubra um dos papéis informados
// pela hierarquia. Sem chamador responde 401, papel insuficiente 403.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", auth.ErrUnauthorized.Error())
				return
			}
			if !auth.Authorize(principal.Role, roles...) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal injeta principal no contexto.
func WithPrincipal(ctx context.Context, p repo.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// GetPrincipal recupera principal autenticado do contexto.
func GetPrincipal(ctx context.Context) (repo.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(repo.Principal)
	return p, ok
}

func withCallerSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, contextKeyCallerSlot, slot)
}

func recordCaller(ctx context.Context, id string) {
	if slot, ok := ctx.Value(contextKeyCallerSlot).(*string); ok {
		*slot = id
	}
}

// GetIdentity devolve a identidade do chamador ou nil para anônimos.
func GetIdentity(ctx context.Context) *auth.Identity {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return nil
	}
	id := p.Identity()
	return &id
}

// GetSubject recupera o id do chamador autenticado.
func GetSubject(ctx context.Context) string {
	if p, ok := GetPrincipal(ctx); ok {
		return p.ID.String()
	}
	return ""
}

// AuthErrorStatus traduz a taxonomia de erros de autenticação em status HTTP.
// ok=false quando o erro não pertence à taxonomia.
func AuthErrorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", true
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "AUTH", true
	case errors.Is(err, auth.ErrOwnerMismatch),
		errors.Is(err, auth.ErrForbidden),
		errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusForbidden, "FORBIDDEN", true
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return http.StatusNotFound, "NOT_FOUND", true
	}
	return 0, "", false
}

// WriteAuthError escreve a resposta correspondente ao erro; erros fora da
// taxonomia viram 500 sem detalhes.
func WriteAuthError(w http.ResponseWriter, err error) {
	status, code, ok := AuthErrorStatus(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
		return
	}

	message := err.Error()
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		message = auth.ErrStoreUnavailable.Error()
	}
	writeError(w, status, code, message)
}

const retryAfterSeconds = 1

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
