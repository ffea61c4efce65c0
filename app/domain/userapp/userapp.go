// Package userapp maintains the app layer api for the users of a tenant.
package userapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/tenantauth/app/sdk/errs"
	"github.com/jcpaschoal/tenantauth/app/sdk/mid"
	"github.com/jcpaschoal/tenantauth/app/sdk/query"
	"github.com/jcpaschoal/tenantauth/business/domain/userbus"
	"github.com/jcpaschoal/tenantauth/business/sdk/order"
	"github.com/jcpaschoal/tenantauth/business/sdk/page"
	"github.com/jcpaschoal/tenantauth/business/sdk/web"
)

// ErrEmailExists is returned when an invite reuses a registered address.
var ErrEmailExists = errors.New("email already registered")

type app struct {
	userBus *userbus.Core
}

func newApp(userBus *userbus.Core) *app {
	return &app{
		userBus: userBus,
	}
}

// create invites a new user into the caller's tenant.
func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewUser
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	tenantID, err := mid.GetTenantID(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "tenant missing in context: %s", err)
	}

	nu, err := toBusNewUser(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	nu.TenantID = tenantID

	usr, err := a.userBus.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, userbus.ErrUniqueEmail) {
			return errs.New(errs.Conflict, ErrEmailExists)
		}
		return errs.Errorf(errs.InternalOnlyLog, "create: tenantID[%s]: %s", tenantID, err)
	}

	return toAppUser(usr)
}

// update changes a user of the caller's tenant.
func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateUser
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	uu, err := toBusUpdateUser(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	usr, appErr := a.tenantUser(ctx, r)
	if appErr != nil {
		return appErr
	}

	updUsr, err := a.userBus.Update(ctx, usr, uu)
	if err != nil {
		if errors.Is(err, userbus.ErrNotFound) {
			return errs.New(errs.NotFound, userbus.ErrNotFound)
		}
		return errs.Errorf(errs.InternalOnlyLog, "update: userID[%s]: %s", usr.ID, err)
	}

	return toAppUser(updUsr)
}

// queryByID returns a user of the caller's tenant.
func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	usr, appErr := a.tenantUser(ctx, r)
	if appErr != nil {
		return appErr
	}

	return toAppUser(usr)
}

// query returns a page of the users of the caller's tenant.
func (a *app) query(ctx context.Context, r *http.Request) web.Encoder {
	qp := parseQueryParams(r)

	page, err := page.Parse(qp.Page, qp.Rows)
	if err != nil {
		return errs.NewFieldErrors("page", err)
	}

	filter, err := parseFilter(qp)
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.NewFieldErrors("filter", err)
	}

	tenantID, err := mid.GetTenantID(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "tenant missing in context: %s", err)
	}

	filter.TenantID = &tenantID

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, userbus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	usrs, err := a.userBus.Query(ctx, filter, orderBy, page)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %s", err)
	}

	total, err := a.userBus.Count(ctx, filter)
	if err != nil {
		return errs.Errorf(errs.Internal, "count: %s", err)
	}

	return query.NewResult(toAppUsers(usrs), total, page)
}

// tenantUser loads the user named in the path. Users of other tenants are
// reported as not found.
func (a *app) tenantUser(ctx context.Context, r *http.Request) (userbus.User, *errs.Error) {
	userID, err := uuid.Parse(web.Param(r, "user_id"))
	if err != nil {
		return userbus.User{}, errs.NewFieldErrors("user_id", err)
	}

	tenantID, err := mid.GetTenantID(ctx)
	if err != nil {
		return userbus.User{}, errs.Errorf(errs.Internal, "tenant missing in context: %s", err)
	}

	usr, err := a.userBus.QueryByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userbus.ErrNotFound) {
			return userbus.User{}, errs.New(errs.NotFound, userbus.ErrNotFound)
		}
		return userbus.User{}, errs.Errorf(errs.Internal, "querybyid: userID[%s]: %s", userID, err)
	}

	if usr.TenantID != tenantID {
		return userbus.User{}, errs.New(errs.NotFound, userbus.ErrNotFound)
	}

	return usr, nil
}
