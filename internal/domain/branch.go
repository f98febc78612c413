package domain

import (
	"context"
	"time"
)

// Branch represents a specific gym location within a tenant
type Branch struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id"`
	Name      string    `bson:"name" json:"name"`
	Timezone  string    `bson:"timezone,omitempty" json:"timezone,omitempty"` // IANA name, e.g. "Asia/Jakarta"
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Location resolves the branch timezone, falling back to UTC
func (b *Branch) Location() *time.Location {
	if b == nil || b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BranchRepository defines read access to branches
type BranchRepository interface {
	Create(ctx context.Context, branch *Branch) error
	GetByID(ctx context.Context, id string) (*Branch, error)
	GetByTenantID(ctx context.Context, tenantID string) ([]*Branch, error)
}

// AccessScope is what the caller may touch. A nil CanAccessBranch allows every branch of the tenant;
// an empty TenantID allows every tenant.
type AccessScope struct {
	TenantID        string
	CanAccessBranch func(branchID string) bool
}

// Allows reports whether a record owned by tenantID and branchID is inside the scope
func (s AccessScope) Allows(tenantID, branchID string) bool {
	if s.TenantID != "" && s.TenantID != tenantID {
		return false
	}
	return s.CanAccessBranch == nil || s.CanAccessBranch(branchID)
}
