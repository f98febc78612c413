package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims represents the JWT claims issued by the platform auth service
type AccessClaims struct {
	UserID       string   `json:"user_id"`
	Roles        []string `json:"roles"`
	TenantID     string   `json:"tenant_id"`
	HomeBranchID string   `json:"home_branch_id,omitempty"`
	BranchAccess []string `json:"branch_access,omitempty"`
	jwt.RegisteredClaims
}

// Role constants
const (
	RoleCoach       = "coach"
	RoleMember      = "member"
	RoleSuperAdmin  = "super_admin"  // Platform owner - no tenant restriction
	RoleTenantAdmin = "tenant_admin" // Gym owner - restricted to specific tenant
)
