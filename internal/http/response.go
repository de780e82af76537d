package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/documents"
	httpmiddleware "github.com/mpcoop/portal/internal/http/middleware"
	"github.com/mpcoop/portal/internal/service"
	"github.com/mpcoop/portal/internal/storage"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// writeServiceError traduz erros de domínio; o restante segue a taxonomia de
// autenticação e, fora dela, vira 500 sem expor detalhes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, documents.ErrInvalidUpload),
		errors.Is(err, documents.ErrInvalidType):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	case errors.Is(err, storage.ErrNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "armazenamento de arquivos desativado", nil)
		return
	}

	if _, _, ok := httpmiddleware.AuthErrorStatus(err); !ok {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("erro não mapeado")
	}
	httpmiddleware.WriteAuthError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return false
	}
	return true
}

const maxJSONBody = 64 << 10
