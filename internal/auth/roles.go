package auth

import (
	"fmt"
	"strings"
)

// Role é o papel único de um principal. Conjunto fechado definido em build.
type Role string

const (
	RoleRegular    Role = "regular"
	RoleAccountant Role = "accountant"
	RoleBoard      Role = "board"
	RoleControl    Role = "control"
	RoleAdmin      Role = "admin"
)

// Roles lista todos os papéis conhecidos.
var Roles = []Role{RoleRegular, RoleAccountant, RoleBoard, RoleControl, RoleAdmin}

// Hierarchy mapeia cada papel para os papéis que ele inclui.
// accountant é folha isolada: admin não o herda.
var Hierarchy = map[Role][]Role{
	RoleAdmin:      {RoleAdmin, RoleControl, RoleBoard, RoleRegular},
	RoleControl:    {RoleControl, RoleBoard, RoleRegular},
	RoleBoard:      {RoleBoard, RoleRegular},
	RoleAccountant: {RoleAccountant},
	RoleRegular:    {RoleRegular},
}

// ParseRole valida a representação externa de um papel.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("papel desconhecido: %q", value)
	}
	return role, nil
}

// Valid indica se o papel pertence à enumeração.
func (r Role) Valid() bool {
	_, ok := Hierarchy[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// MarshalText garante que apenas papéis válidos sejam serializados.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("papel desconhecido: %q", string(r))
	}
	return []byte(r), nil
}

// UnmarshalText rejeita papéis fora da enumeração em vez de assumir um padrão.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Includes indica se o papel abrange other pela hierarquia.
func (r Role) Includes(other Role) bool {
	for _, included := range Hierarchy[r] {
		if included == other {
			return true
		}
	}
	return false
}

// Authorize retorna true se a hierarquia do papel chamador contém ao menos um
// dos papéis exigidos.
func Authorize(callerRole Role, required ...Role) bool {
	for _, role := range required {
		if callerRole.Includes(role) {
			return true
		}
	}
	return false
}

// Identity é a visão mínima de um principal usada pelas regras de acesso.
type Identity struct {
	ID   string
	Role Role
}
