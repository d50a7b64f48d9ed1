package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"elevaite-rbac/internal/rbac/engine"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

const validationInfoContextKey = "validation_info"

// RouteContext declares which context headers an endpoint accepts. Header
// context is only consulted when the corresponding id is not already a path
// parameter.
type RouteContext struct {
	AccountHeader bool
	ProjectHeader bool
}

// RBACMiddleware mounts the permission pipeline in front of resource routes.
// Each route declares its target entity class, target action tuple and
// accepted context at registration time.
type RBACMiddleware struct {
	Engine *engine.Engine
	Store  repository.Store
}

func NewRBACMiddleware(eng *engine.Engine, store repository.Store) *RBACMiddleware {
	return &RBACMiddleware{Engine: eng, Store: store}
}

// Require returns the middleware enforcing (targetClass, targetActions) for
// one route. On success the validation info is stored on the request context
// for the handler.
func (m *RBACMiddleware) Require(targetClass string, targetActions []string, routeCtx RouteContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := Principal(c)
			if principal == nil {
				return c.JSON(http.StatusUnauthorized, model.ErrorResponse{
					Error: model.ErrorDetail{Code: "unauthorized", Message: "authentication required"},
				})
			}

			params := m.collectParams(c, routeCtx)

			info, err := m.Engine.ValidateRBACPermissions(
				c.Request().Context(), m.Store, principal, params, targetClass, targetActions)
			if err != nil {
				code, body := httpError(err)
				return c.JSON(code, body)
			}

			c.Set(validationInfoContextKey, info)
			return next(c)
		}
	}
}

// collectParams merges path parameters, declared context headers and body
// *_id fields into the parameter view the engine resolves entities from.
func (m *RBACMiddleware) collectParams(c echo.Context, routeCtx RouteContext) engine.RequestParams {
	params := engine.RequestParams{}

	for _, name := range c.ParamNames() {
		params[name] = c.Param(name)
	}

	// Body ids participate in resolution for non-GET requests; the body is
	// restored for the handler.
	if c.Request().Method != http.MethodGet && c.Request().Body != nil {
		bodyBytes, err := io.ReadAll(c.Request().Body)
		if err == nil && len(bodyBytes) > 0 {
			var bodyData map[string]interface{}
			if json.Unmarshal(bodyBytes, &bodyData) == nil {
				for key, value := range bodyData {
					if !strings.HasSuffix(key, "_id") || value == nil {
						continue
					}
					if _, exists := params[key]; exists {
						continue
					}
					switch v := value.(type) {
					case string:
						params[key] = v
					case float64:
						params[key] = strconv.FormatFloat(v, 'f', -1, 64)
					}
				}
			}
			c.Request().Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
	}

	if _, hasAccount := params["account_id"]; !hasAccount {
		if _, hasProject := params["project_id"]; !hasProject && routeCtx.AccountHeader {
			if accountID := c.Request().Header.Get(model.HeaderAccountID); accountID != "" {
				params["account_id"] = accountID
			}
		}
	}
	if _, hasProject := params["project_id"]; !hasProject && routeCtx.ProjectHeader {
		if projectID := c.Request().Header.Get(model.HeaderProjectID); projectID != "" {
			params["project_id"] = projectID
		}
	}

	return params
}

// ValidationInfo returns the validation state stored by Require, or nil.
func ValidationInfo(c echo.Context) *engine.ValidationInfo {
	info, _ := c.Get(validationInfoContextKey).(*engine.ValidationInfo)
	return info
}
