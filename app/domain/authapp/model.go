package authapp

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/business/domain/tenantbus"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/types/name"
	"github.com/jcpaschoal/tenantauth/business/types/password"
	"github.com/jcpaschoal/tenantauth/business/types/role"
	"github.com/jcpaschoal/tenantauth/business/types/slug"
)

// =============================================================================
// Output

// User is the public view of an account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Tenant is the public view of the account's tenant.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Session is returned after a successful register or login.
type Session struct {
	User   User   `json:"user"`
	Tenant Tenant `json:"tenant"`
	Token  string `json:"token"`
}

// Encode implements the web.Encoder interface.
func (s Session) Encode() ([]byte, string, error) {
	data, err := json.Marshal(s)
	return data, "application/json", err
}

// Profile describes the authenticated user.
type Profile struct {
	User   User   `json:"user"`
	Tenant Tenant `json:"tenant"`
}

// Encode implements the web.Encoder interface.
func (p Profile) Encode() ([]byte, string, error) {
	data, err := json.Marshal(p)
	return data, "application/json", err
}

// Message is a plain acknowledgement.
type Message struct {
	Message string `json:"message"`
}

// Encode implements the web.Encoder interface.
func (m Message) Encode() ([]byte, string, error) {
	data, err := json.Marshal(m)
	return data, "application/json", err
}

func toAppUser(usr userbus.User) User {
	return User{
		ID:    usr.ID.String(),
		Email: usr.Email.Address,
		Name:  usr.Name.String(),
		Role:  usr.Role.String(),
	}
}

func toAppTenant(tnt tenantbus.Tenant) Tenant {
	return Tenant{
		ID:   tnt.ID.String(),
		Name: tnt.Name.String(),
		Slug: tnt.Slug.String(),
	}
}

func toAppSession(usr userbus.User, tnt tenantbus.Tenant, token string) Session {
	return Session{
		User:   toAppUser(usr),
		Tenant: toAppTenant(tnt),
		Token:  token,
	}
}

func toAppProfile(usr userbus.User, tnt tenantbus.Tenant) Profile {
	return Profile{
		User:   toAppUser(usr),
		Tenant: toAppTenant(tnt),
	}
}

// =============================================================================
// Register (Input)

// Register defines the data needed to open a tenant with its first admin.
type Register struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Name       string `json:"name" validate:"required,min=2"`
	TenantName string `json:"tenantName" validate:"required,min=2"`
	TenantSlug string `json:"tenantSlug" validate:"required,min=2,slug"`
}

// Decode implements the web.Decoder interface.
func (app *Register) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app Register) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusRegister(app Register) (tenantbus.NewTenant, userbus.NewUser, error) {
	var fieldErrors errs.FieldErrors

	addr, err := parseEmail(app.Email)
	if err != nil {
		fieldErrors.Add("email", err)
	}

	pass, err := password.Parse(app.Password)
	if err != nil {
		fieldErrors.Add("password", err)
	}

	nme, err := name.Parse(app.Name)
	if err != nil {
		fieldErrors.Add("name", err)
	}

	tntName, err := name.Parse(app.TenantName)
	if err != nil {
		fieldErrors.Add("tenantName", err)
	}

	slg, err := slug.Parse(app.TenantSlug)
	if err != nil {
		fieldErrors.Add("tenantSlug", err)
	}

	if fieldErrors != nil {
		return tenantbus.NewTenant{}, userbus.NewUser{}, fieldErrors.ToError()
	}

	nt := tenantbus.NewTenant{
		Name: tntName,
		Slug: slg,
	}

	nu := userbus.NewUser{
		Name:     nme,
		Email:    addr,
		Role:     role.Admin,
		Password: pass,
	}

	return nt, nu, nil
}

// =============================================================================
// Login (Input)

// Login defines the credentials presented to open a session.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Decode implements the web.Decoder interface.
func (app *Login) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app Login) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// =============================================================================

// parseEmail normalizes the address so lookups and the unique constraint
// see a single spelling of it.
func parseEmail(value string) (mail.Address, error) {
	addr, err := mail.ParseAddress(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return mail.Address{}, fmt.Errorf("parse email: %w", err)
	}

	return mail.Address{Address: addr.Address}, nil
}
