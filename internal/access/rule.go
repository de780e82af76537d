// Package access decide a visibilidade de leitura de recursos já criados.
// Escrita não passa por aqui: é controlada pelo papel exigido em cada operação.
package access

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mpcoop/portal/internal/auth"
)

// Classification define quem pode ler um recurso.
type Classification string

const (
	Public           Classification = "public"
	AnyAuthenticated Classification = "any-authenticated"
	RoleGated        Classification = "role-gated"
	AllowList        Classification = "allow-list"
)

var (
	ErrEmptyAllowList        = errors.New("allow-list exige ao menos um usuário")
	ErrEmptyRoleSet          = errors.New("role-gated exige ao menos um papel")
	ErrUnknownClassification = errors.New("classificação de acesso desconhecida")
)

// ParseClassification normaliza e valida a classificação.
func ParseClassification(value string) (Classification, error) {
	c := Classification(strings.ToLower(strings.TrimSpace(value)))
	switch c {
	case Public, AnyAuthenticated, RoleGated, AllowList:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClassification, value)
}

// Rule é a regra de leitura de um recurso.
type Rule struct {
	Classification Classification
	Roles          []auth.Role
	PrincipalIDs   []string
}

// NewRule valida a regra no momento da criação do recurso.
func NewRule(classification Classification, roles []auth.Role, principalIDs []string) (Rule, error) {
	switch classification {
	case Public, AnyAuthenticated:
		return Rule{Classification: classification}, nil
	case RoleGated:
		if len(roles) == 0 {
			return Rule{}, ErrEmptyRoleSet
		}
		for _, r := range roles {
			if !r.Valid() {
				return Rule{}, fmt.Errorf("papel inválido na regra: %q", r)
			}
		}
		return Rule{Classification: classification, Roles: slices.Clone(roles)}, nil
	case AllowList:
		ids := make([]string, 0, len(principalIDs))
		for _, id := range principalIDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return Rule{}, ErrEmptyAllowList
		}
		return Rule{Classification: classification, PrincipalIDs: ids}, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrUnknownClassification, classification)
}

// CanRead aplica a regra ao chamador (nil = anônimo). Papéis são comparados
// diretamente, sem herança da hierarquia. Classificação desconhecida nega.
func CanRead(rule Rule, caller *auth.Identity) bool {
	switch rule.Classification {
	case Public:
		return true
	case AnyAuthenticated:
		return caller != nil
	case RoleGated:
		return caller != nil && slices.Contains(rule.Roles, caller.Role)
	case AllowList:
		return caller != nil && slices.Contains(rule.PrincipalIDs, caller.ID)
	}
	return false
}
