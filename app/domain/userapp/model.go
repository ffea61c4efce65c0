package userapp

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/password"
	"github.com/jcpaschoal/tenantauth/business/types/role"
)

// =============================================================================
// User (Output)
// =============================================================================

// User represents information about an individual user.
type User struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	LastLogin   string `json:"lastLogin,omitempty"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app User) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppUser(bus userbus.User) User {
	var lastLogin string
	if bus.LastLogin != nil {
		lastLogin = bus.LastLogin.Format(time.RFC3339)
	}

	return User{
		ID:          bus.ID.String(),
		TenantID:    bus.TenantID.String(),
		Name:        bus.Name.String(),
		Email:       bus.Email.Address,
		Role:        bus.Role.String(),
		Active:      bus.Active,
		LastLogin:   lastLogin,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

func toAppUsers(users []userbus.User) []User {
	app := make([]User, len(users))
	for i, usr := range users {
		app[i] = toAppUser(usr)
	}
	return app
}

// =============================================================================
// NewUser (Input)
// =============================================================================

// NewUser defines the data needed to invite a user into the caller's tenant.
type NewUser struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=MEMBER MANAGER"`
	Password string `json:"password" validate:"required,min=8"`
}

// Decode implements the web.Decoder interface.
func (app *NewUser) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewUser) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewUser(app NewUser) (userbus.NewUser, error) {
	r, err := role.Parse(app.Role)
	if err != nil {
		return userbus.NewUser{}, fmt.Errorf("parse role: %w", err)
	}

	addr, err := parseEmail(app.Email)
	if err != nil {
		return userbus.NewUser{}, err
	}

	nme, err := name.Parse(app.Name)
	if err != nil {
		return userbus.NewUser{}, fmt.Errorf("parse name: %w", err)
	}

	pass, err := password.Parse(app.Password)
	if err != nil {
		return userbus.NewUser{}, fmt.Errorf("parse password: %w", err)
	}

	bus := userbus.NewUser{
		Name:     nme,
		Email:    addr,
		Role:     r,
		Password: pass,
	}

	return bus, nil
}

// =============================================================================
// UpdateUser (Input)
// =============================================================================

// UpdateUser defines the data an admin may change on a user of the tenant.
type UpdateUser struct {
	Name     *string `json:"name" validate:"omitempty,min=2"`
	Role     *string `json:"role" validate:"omitempty,oneof=MEMBER MANAGER ADMIN"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	Active   *bool   `json:"active"`
}

// Decode implements the web.Decoder interface.
func (app *UpdateUser) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app UpdateUser) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusUpdateUser(app UpdateUser) (userbus.UpdateUser, error) {
	var nme *name.Name
	if app.Name != nil {
		nm, err := name.Parse(*app.Name)
		if err != nil {
			return userbus.UpdateUser{}, fmt.Errorf("parse name: %w", err)
		}
		nme = &nm
	}

	var r *role.Role
	if app.Role != nil {
		rl, err := role.Parse(*app.Role)
		if err != nil {
			return userbus.UpdateUser{}, fmt.Errorf("parse role: %w", err)
		}
		r = &rl
	}

	var pass *password.Password
	if app.Password != nil {
		p, err := password.Parse(*app.Password)
		if err != nil {
			return userbus.UpdateUser{}, fmt.Errorf("parse password: %w", err)
		}
		pass = &p
	}

	bus := userbus.UpdateUser{
		Name:     nme,
		Role:     r,
		Password: pass,
		Active:   app.Active,
	}

	return bus, nil
}

// =============================================================================

func parseEmail(value string) (mail.Address, error) {
	addr, err := mail.ParseAddress(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return mail.Address{}, fmt.Errorf("parse email: %w", err)
	}

	return mail.Address{Address: addr.Address}, nil
}
