package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/mpcoop/portal/internal/auth"
)

// Principal representa um cooperado ou colaborador com acesso ao portal.
type Principal struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	Role         auth.Role
	Active       bool
	Subscribed   bool
	PasswordHash string
	Salt         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity devolve a visão mínima usada pelas regras de autorização.
func (p Principal) Identity() auth.Identity {
	return auth.Identity{ID: p.ID.String(), Role: p.Role}
}

// FullName concatena nome e sobrenome.
func (p Principal) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
