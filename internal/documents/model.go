package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mpcoop/portal/internal/access"
	"github.com/mpcoop/portal/internal/auth"
)

var (
	// ErrNotFound indica documento inexistente.
	ErrNotFound = errors.New("documento não encontrado")
	// ErrInvalidType indica tipo de documento fora da enumeração.
	ErrInvalidType = errors.New("tipo de documento inválido")
)

// Type classifica documentos publicados no portal.
type Type string

const (
	TypeGoverningDocuments Type = "governing_documents"
	TypeForms              Type = "forms"
	TypeMinutes            Type = "minutes"
	TypeTranscripts        Type = "transcripts"
	TypeAccounting         Type = "accounting"
	TypePrivateDocuments   Type = "private_documents"
	TypeOthers             Type = "others"
)

// Types lista os tipos na ordem exibida pelo portal.
var Types = []Type{
	TypeGoverningDocuments,
	TypeForms,
	TypeMinutes,
	TypeTranscripts,
	TypeAccounting,
	TypePrivateDocuments,
	TypeOthers,
}

// ParseType valida o tipo informado pelo cliente.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, value)
}

// DefaultRule devolve a regra de leitura padrão do tipo. Documentos privados
// exigem a lista de usuários autorizados.
func DefaultRule(t Type, allowedIDs []string) (access.Rule, error) {
	switch t {
	case TypeForms, TypeGoverningDocuments, TypeOthers:
		return access.NewRule(access.Public, nil, nil)
	case TypeMinutes, TypeTranscripts:
		return access.NewRule(access.AnyAuthenticated, nil, nil)
	case TypeAccounting:
		return access.NewRule(access.RoleGated, []auth.Role{auth.RoleAccountant, auth.RoleAdmin}, nil)
	case TypePrivateDocuments:
		return access.NewRule(access.AllowList, nil, allowedIDs)
	}
	return access.Rule{}, fmt.Errorf("%w: %q", ErrInvalidType, t)
}

// WriteRoles define quem pode publicar ou remover documentos do tipo.
func WriteRoles(t Type) []auth.Role {
	if t == TypeAccounting {
		return []auth.Role{auth.RoleAdmin, auth.RoleAccountant}
	}
	return []auth.Role{auth.RoleAdmin}
}

// Document é o metadado persistido; o conteúdo fica no storage.
type Document struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Type        Type        `json:"type"`
	Key         string      `json:"-"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	Rule        access.Rule `json:"-"`
	UploadedBy  uuid.UUID   `json:"uploaded_by"`
	CreatedAt   time.Time   `json:"created_at"`
}
