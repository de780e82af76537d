package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/documents"
	httpmiddleware "github.com/mpcoop/portal/internal/http/middleware"
)

const multipartMemory = 8 << 20

// ListDocuments lista documentos visíveis ao chamador, opcionalmente por tipo.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var filter *documents.Type
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := documents.ParseType(raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		filter = &t
	}

	docs, err := h.documents.List(r.Context(), httpmiddleware.GetIdentity(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": docs})
}

// DownloadDocument devolve link temporário para o arquivo.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	url, err := h.documents.DownloadURL(r.Context(), httpmiddleware.GetIdentity(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(h.cfg.DownloadTTL.Seconds()),
	})
}

// UploadDocument recebe multipart com campos type, name, allowed_users e file.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	caller := httpmiddleware.GetIdentity(r.Context())
	if caller == nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", auth.ErrUnauthorized.Error(), nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "arquivo excede o limite", nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", "multipart inválido", nil)
		return
	}

	docType, err := documents.ParseType(r.FormValue("type"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo obrigatório", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "falha ao ler arquivo", nil)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	doc, err := h.documents.Upload(r.Context(), *caller, documents.UploadInput{
		Name:         name,
		Type:         docType,
		ContentType:  contentType,
		Body:         body,
		AllowedUsers: allowedUsers(r.MultipartForm.Value["allowed_users"]),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, doc)
}

// DeleteDocument remove documento; o papel exigido depende do tipo.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	caller := httpmiddleware.GetIdentity(r.Context())
	if caller == nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", auth.ErrUnauthorized.Error(), nil)
		return
	}
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := h.documents.Delete(r.Context(), *caller, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return uuid.Nil, false
	}
	return id, true
}

// allowedUsers aceita o campo repetido ou uma lista separada por vírgulas.
func allowedUsers(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
