package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/mpcoop/portal/internal/auth"
	httpmiddleware "github.com/mpcoop/portal/internal/http/middleware"
	"github.com/mpcoop/portal/internal/service"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// Login autentica por e-mail e senha.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

// Refresh rotaciona o refresh token do cookie e emite um novo par.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshFromRequest(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		if status, _, _ := httpmiddleware.AuthErrorStatus(err); status == http.StatusUnauthorized {
			// cookie morto não deve ser reenviado
			h.clearRefreshCookie(w)
		}
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

// Logout revoga o refresh token atual. Sempre responde sucesso.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := refreshFromRequest(r); ok {
		h.authService.Logout(r.Context(), token)
	}

	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna o perfil do chamador autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := httpmiddleware.GetPrincipal(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", auth.ErrUnauthorized.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"id":         p.ID,
		"email":      p.Email,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"phone":      p.Phone,
		"role":       p.Role,
		"subscribed": p.Subscribed,
	})
}

func (h *Handler) writeSession(w http.ResponseWriter, result *service.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.AccessTTL / time.Second),
		"user": map[string]any{
			"id":   result.Subject,
			"role": result.Role,
		},
	})
}

func refreshFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
