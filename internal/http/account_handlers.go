package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ActivateAccount consome o token de ativação enviado por e-mail.
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.authService.ActivateAccount(r.Context(), q.Get("email"), q.Get("token")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"active": true})
}

// Unsubscribe cancela o recebimento de e-mails.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.authService.Unsubscribe(r.Context(), q.Get("email"), q.Get("token")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"subscribed": false})
}

// ForgotPassword responde 202 mesmo para e-mail desconhecido.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// ResetPassword troca a senha a partir do token de redefinição.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

// SendActivation reenvia o e-mail de ativação de um principal.
func (h *Handler) SendActivation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.authService.SendActivation(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
