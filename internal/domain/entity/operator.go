package entity

import "time"

// Roles válidos para Operator.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operator usuario de la API. BranchID vacío = acceso a todas las sucursales.
type Operator struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, operator
	BranchID     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
