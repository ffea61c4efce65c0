package tenantbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/slug"
)

// Tenant represents a client organization in the system. Every user belongs
// to exactly one tenant.
type Tenant struct {
	ID        uuid.UUID
	Name      name.Name
	Slug      slug.Slug
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant contains information needed to create a new tenant.
type NewTenant struct {
	Name name.Name
	Slug slug.Slug
}
