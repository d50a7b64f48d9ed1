package handler

import (
	"net/http"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
)

// Helper to map engine error kinds to HTTP status and body
func httpError(err error) (int, interface{}) {
	if e, ok := err.(*apperror.Error); ok {
		switch e.Kind {
		case apperror.KindUnauthorized:
			return http.StatusUnauthorized, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "unauthorized", Message: e.Message},
			}
		case apperror.KindForbidden:
			return http.StatusForbidden, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "forbidden", Message: e.Message},
			}
		case apperror.KindNotFound:
			return http.StatusNotFound, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "not_found", Message: e.Message},
			}
		case apperror.KindValidation:
			return http.StatusUnprocessableEntity, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "validation_error", Message: e.Message},
			}
		case apperror.KindConflict:
			return http.StatusConflict, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "conflict", Message: e.Message},
			}
		case apperror.KindUnavailable:
			return http.StatusServiceUnavailable, model.ErrorResponse{
				Error: model.ErrorDetail{Code: "service_unavailable", Message: e.Message},
			}
		}
	}

	// Fallback
	return http.StatusInternalServerError, model.ErrorResponse{
		Error: model.ErrorDetail{Code: "internal_error", Message: "Internal Server Error"},
	}
}
