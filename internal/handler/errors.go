package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{service.ErrValidation, http.StatusBadRequest, "ValidationError"},
	{service.ErrInsufficientStock, http.StatusBadRequest, "InsufficientStock"},
	{service.ErrProductNotFound, http.StatusBadRequest, "ProductNotFound"},
	{service.ErrProductInactive, http.StatusBadRequest, "ProductInactive"},
	{service.ErrInvalidStateTransition, http.StatusBadRequest, "InvalidStateTransition"},
	{service.ErrOrderNotFound, http.StatusNotFound, "NotFound"},
	{service.ErrInvoiceNotFound, http.StatusNotFound, "NotFound"},
	{service.ErrUserNotFound, http.StatusNotFound, "NotFound"},
	{service.ErrAccessDenied, http.StatusForbidden, "AccessDenied"},
	{service.ErrUserAlreadyExists, http.StatusConflict, "Conflict"},
	{service.ErrDependencyUnavailable, http.StatusServiceUnavailable, "DependencyUnavailable"},
}

// respondError writes the JSON error body for err. Unmapped errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := err.Error()
			if m.status >= http.StatusInternalServerError {
				log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
				msg = "service temporarily unavailable"
			}
			c.JSON(m.status, dto.ErrorResponse{Error: m.code, Message: msg})
			return
		}
	}
	log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "InternalError", Message: "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "ValidationError", Message: msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "NotFound", Message: msg})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized", Message: "authentication required"})
}

// paramID parses the :id path parameter, writing a 400 when it is not a UUID.
func paramID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
