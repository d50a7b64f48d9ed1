package router

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"elevaite-rbac/internal/rbac/engine"
	"elevaite-rbac/internal/rbac/handler"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

func RegisterRoutes(e *echo.Echo, eng *engine.Engine, store repository.Store) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			model.HeaderUserID, model.HeaderApikeyID, model.HeaderAccountID, model.HeaderProjectID,
		},
	}))

	// Health Check
	e.GET("/health", handler.HealthCheck)

	authHandler := handler.NewAuthHandler(eng, store)
	resourceHandler := handler.NewResourceHandler(eng, store)

	principals := handler.NewPrincipalMiddleware(store)
	rbac := handler.NewRBACMiddleware(eng, store)

	v1 := e.Group("/api/v1")
	v1.Use(principals.Middleware())

	// Permissions introspection; runs the pipeline per probe itself.
	v1.POST("/auth/permissions/evaluate", authHandler.EvaluatePermissions)

	read := []string{model.ActionRead}

	v1.GET("/projects", resourceHandler.ListProjects,
		rbac.Require(model.ClassProject, read, handler.RouteContext{AccountHeader: true}))
	v1.GET("/projects/:project_id", resourceHandler.GetProject,
		rbac.Require(model.ClassProject, read, handler.RouteContext{AccountHeader: true}))

	v1.GET("/applications", resourceHandler.ListApplications,
		rbac.Require(model.ClassApplication, read, handler.RouteContext{AccountHeader: true}))

	v1.GET("/projects/:project_id/datasets", resourceHandler.ListDatasets,
		rbac.Require(model.ClassDataset, read, handler.RouteContext{AccountHeader: true}))
	v1.GET("/projects/:project_id/datasets/:dataset_id", resourceHandler.GetDataset,
		rbac.Require(model.ClassDataset, read, handler.RouteContext{AccountHeader: true}))

	v1.GET("/projects/:project_id/collections", resourceHandler.ListCollections,
		rbac.Require(model.ClassCollection, read, handler.RouteContext{AccountHeader: true}))

	v1.POST("/servicenow/ingest", resourceHandler.ServicenowIngest,
		rbac.Require(model.ClassProject, []string{"SERVICENOW", "TICKET", "INGEST"}, handler.RouteContext{ProjectHeader: true}))
}
