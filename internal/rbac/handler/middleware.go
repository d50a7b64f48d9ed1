package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

const principalContextKey = "principal"

// PrincipalMiddleware resolves the authenticated identity for a request. The
// upstream authenticator has already verified credentials; what arrives here
// is the resolved subject id in a header, which is loaded into a User or
// Apikey principal.
type PrincipalMiddleware struct {
	Store repository.Store
}

func NewPrincipalMiddleware(store repository.Store) *PrincipalMiddleware {
	return &PrincipalMiddleware{Store: store}
}

func (m *PrincipalMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := m.resolve(c)
			if err != nil {
				code, body := httpError(err)
				return c.JSON(code, body)
			}
			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

func (m *PrincipalMiddleware) resolve(c echo.Context) (model.Principal, error) {
	ctx := c.Request().Context()

	if userID := c.Request().Header.Get(model.HeaderUserID); userID != "" {
		entity, err := m.Store.FindEntity(ctx, model.ClassUser, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.Unauthorized("unknown user")
			}
			return nil, apperror.Unavailable()
		}
		return entity.(*model.User), nil
	}

	if apikeyID := c.Request().Header.Get(model.HeaderApikeyID); apikeyID != "" {
		entity, err := m.Store.FindEntity(ctx, model.ClassApikey, apikeyID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.Unauthorized("unknown api key")
			}
			return nil, apperror.Unavailable()
		}
		return entity.(*model.Apikey), nil
	}

	return nil, apperror.Unauthorized("authentication required")
}

// Principal returns the principal resolved for the request, or nil.
func Principal(c echo.Context) model.Principal {
	principal, _ := c.Get(principalContextKey).(model.Principal)
	return principal
}
