package actor

import "strings"

// Role define los roles conocidos del sistema.
type Role string

const (
	RoleAdopter   Role = "adopter"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Actor identifica quién ejecuta una operación. Los engines no consultan
// ningún contexto de autenticación global: el actor llega siempre explícito.
type Actor struct {
	UserID string
	Role   Role
}

func New(userID string, role Role) Actor {
	if role == "" {
		role = RoleAdopter
	}
	return Actor{UserID: strings.TrimSpace(userID), Role: role}
}

func (a Actor) Valid() bool {
	return a.UserID != ""
}

// Privileged cubre moderadores y administradores.
func (a Actor) Privileged() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}

func (a Actor) Admin() bool {
	return a.Role == RoleAdmin
}
