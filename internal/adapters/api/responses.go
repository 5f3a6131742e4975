// Package api exposes the dispatch service over HTTP with gin.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	coredispatch "github.com/example/galley/internal/core/dispatch"
	"github.com/example/galley/internal/logging"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		verr  *coredispatch.ValidationError
		nf    *coredispatch.NotFoundError
		terr  *coredispatch.InvalidTransitionError
		cerr  *coredispatch.ConflictError
		pferr *coredispatch.PartialFailureError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Message: verr.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found", Message: nf.Error()})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Invalid transition", Message: terr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Concurrent update", Message: cerr.Error()})
	case errors.As(err, &pferr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "No branch accepted the item",
			Message: pferr.Error(),
			Details: gin.H{"skipped_branches": pferr.Skipped},
		})
	default:
		logging.Error("request failed", logging.Fields{"path": c.Request.URL.Path, "error": err})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Message: err.Error()})
	}
}

func respondForbidden(c *gin.Context, reason string) {
	c.JSON(http.StatusForbidden, ErrorResponse{Error: "Forbidden", Message: reason})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Message: err.Error()})
}
