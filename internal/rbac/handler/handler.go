package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"elevaite-rbac/internal/rbac/engine"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// AuthHandler serves the permissions-introspection API.
type AuthHandler struct {
	Engine *engine.Engine
	Store  repository.Store
}

func NewAuthHandler(eng *engine.Engine, store repository.Store) *AuthHandler {
	return &AuthHandler{Engine: eng, Store: store}
}

// EvaluatePermissions answers a batch of (resource, action) probes for the
// candidate account/project context carried in the headers. Probes denied by
// permissions come back as OVERALL_PERMISSIONS=false; every other failure
// class keeps its status.
func (h *AuthHandler) EvaluatePermissions(c echo.Context) error {
	principal := Principal(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "unauthorized", Message: "authentication required"},
		})
	}

	var probes model.PermissionsEvaluationRequest
	if err := c.Bind(&probes); err != nil {
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "bad_request", Message: "Invalid body"},
		})
	}
	if detail := probes.Validate(); detail != nil {
		return c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: *detail})
	}

	accountID := c.Request().Header.Get(model.HeaderAccountID)
	projectID := c.Request().Header.Get(model.HeaderProjectID)

	response, err := h.Engine.EvaluatePermissions(
		c.Request().Context(), h.Store, principal, accountID, projectID, probes)
	if err != nil {
		code, body := httpError(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, response)
}

// ResourceHandler serves the resource routes mounted behind the RBAC
// middleware. Handlers read resolved instances and denial state off the
// validation info instead of re-querying.
type ResourceHandler struct {
	Engine *engine.Engine
	Store  repository.Store
}

func NewResourceHandler(eng *engine.Engine, store repository.Store) *ResourceHandler {
	return &ResourceHandler{Engine: eng, Store: store}
}

func (h *ResourceHandler) ListProjects(c echo.Context) error {
	info := ValidationInfo(c)
	account, ok := info.Instances[model.ClassAccount]
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "validation_error", Message: model.HeaderAccountID + " header is required"},
		})
	}

	projects, err := h.Store.ListEntities(c.Request().Context(), model.ClassProject, bson.M{"account_id": account.PrimaryKey()})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "service_unavailable", Message: "The server is currently unavailable, please try again later."},
		})
	}
	return c.JSON(http.StatusOK, projects)
}

func (h *ResourceHandler) GetProject(c echo.Context) error {
	info := ValidationInfo(c)
	return c.JSON(http.StatusOK, info.Instances[model.ClassProject])
}

// ListApplications applies the post-validation type filter, so rows whose
// type configuration the principal was denied never leave the store.
func (h *ResourceHandler) ListApplications(c echo.Context) error {
	info := ValidationInfo(c)
	account, ok := info.Instances[model.ClassAccount]
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "validation_error", Message: model.HeaderAccountID + " header is required"},
		})
	}

	filter := bson.M{"account_id": account.PrimaryKey()}
	if typeFilter := h.Engine.ListFilter(model.ClassApplication, info); typeFilter != nil {
		filter = bson.M{"$and": bson.A{filter, typeFilter}}
	}

	applications, err := h.Store.ListEntities(c.Request().Context(), model.ClassApplication, filter)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "service_unavailable", Message: "The server is currently unavailable, please try again later."},
		})
	}
	return c.JSON(http.StatusOK, applications)
}

func (h *ResourceHandler) GetDataset(c echo.Context) error {
	info := ValidationInfo(c)
	return c.JSON(http.StatusOK, info.Instances[model.ClassDataset])
}

func (h *ResourceHandler) ListCollections(c echo.Context) error {
	info := ValidationInfo(c)
	project, ok := info.Instances[model.ClassProject]
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "validation_error", Message: "project_id is required"},
		})
	}

	collections, err := h.Store.ListEntities(c.Request().Context(), model.ClassCollection, bson.M{"project_id": project.PrimaryKey()})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "service_unavailable", Message: "The server is currently unavailable, please try again later."},
		})
	}
	return c.JSON(http.StatusOK, collections)
}

// ServicenowIngest is the authorization surface for ticket ingestion; the
// ingestion itself is queued by a collaborator service once the nested action
// tuple clears.
func (h *ResourceHandler) ServicenowIngest(c echo.Context) error {
	info := ValidationInfo(c)
	project := info.Instances[model.ClassProject]
	return c.JSON(http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"project_id": project.PrimaryKey(),
	})
}

func (h *ResourceHandler) ListDatasets(c echo.Context) error {
	info := ValidationInfo(c)
	project, ok := info.Instances[model.ClassProject]
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "validation_error", Message: "project_id is required"},
		})
	}

	datasets, err := h.Store.ListEntities(c.Request().Context(), model.ClassDataset, bson.M{"project_id": project.PrimaryKey()})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Error: model.ErrorDetail{Code: "service_unavailable", Message: "The server is currently unavailable, please try again later."},
		})
	}
	return c.JSON(http.StatusOK, datasets)
}
