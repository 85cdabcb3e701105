package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tordrt/schemascope/internal/db"
	"github.com/tordrt/schemascope/internal/schema"
)

// statusClientClosedRequest is the nginx convention for a client that went away
const statusClientClosedRequest = 499

type apiError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *apiError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidParameter(name, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_PARAMETER",
		Message: message,
		Details: map[string]any{"parameter": name},
	}
}

// toAPIError maps service errors onto HTTP statuses
func toAPIError(err error) *apiError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var upstream *db.UpstreamError
	switch {
	case errors.Is(err, schema.ErrInvalidIdentifier):
		return &apiError{Status: http.StatusBadRequest, Code: "INVALID_IDENTIFIER", Message: err.Error()}
	case errors.Is(err, db.ErrTableNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "TABLE_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, db.ErrColumnNotFound):
		return &apiError{Status: http.StatusBadRequest, Code: "COLUMN_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, db.ErrRowsUnsupported):
		return &apiError{Status: http.StatusNotImplemented, Code: "NOT_IMPLEMENTED", Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &apiError{Status: statusClientClosedRequest, Code: "REQUEST_CANCELED", Message: "Request canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &apiError{Status: http.StatusGatewayTimeout, Code: "UPSTREAM_TIMEOUT", Message: "Schema source timed out"}
	case errors.As(err, &upstream):
		return &apiError{
			Status:  http.StatusBadGateway,
			Code:    "UPSTREAM_ERROR",
			Message: upstream.Message,
			Details: map[string]any{"status": upstream.Status, "code": upstream.Code},
		}
	default:
		return &apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_ERROR", Message: err.Error()}
	}
}
