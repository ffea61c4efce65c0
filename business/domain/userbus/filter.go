package userbus

import (
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/role"
)

// QueryFilter holds the available fields a query can be filtered on.
type QueryFilter struct {
	TenantID       *uuid.UUID
	ID             *uuid.UUID
	Name           *name.Name
	Email          *mail.Address
	Role           *role.Role
	Active         *bool
	StartCreatedAt *time.Time
	EndCreatedAt   *time.Time
}
