package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims issued to back-office staff.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"user_id"`
	Branch string   `json:"branch,omitempty"`
	Roles  []string `json:"roles"`
}

// HasRole checks if the claims include the specified role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Role constants
const (
	RoleSuperAdmin     = "super-admin"
	RoleAdmin          = "admin"
	RoleManager        = "manager"
	RoleCashier        = "cashier"
	RoleAccountOfficer = "account_officer"
)
