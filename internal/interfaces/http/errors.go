package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moogar0880/problems"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

const problemContentType = "application/problem+json"

func writeProblem(c *gin.Context, status int, problemType, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Request.URL.Path).
		WithType(problemType).
		WithDetail(detail)

	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(status, problem)
}

func badRequest(c *gin.Context, detail string) {
	writeProblem(c, http.StatusBadRequest, "validation_error", detail)
}

func missingActor(c *gin.Context) {
	writeProblem(c, http.StatusUnauthorized, "missing_actor", "X-Actor-ID header is required")
}

// handleServiceError maps engine and service errors onto problem responses
func (h *Handlers) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		writeProblem(c, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, workflow.ErrUnauthorized):
		writeProblem(c, http.StatusForbidden, "unauthorized", err.Error())

	case errors.Is(err, workflow.ErrUnknownRequestType):
		writeProblem(c, http.StatusNotFound, "unknown_request_type", err.Error())

	case errors.Is(err, workflow.ErrNotFound):
		writeProblem(c, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, workflow.ErrConcurrencyConflict):
		writeProblem(c, http.StatusConflict, "concurrency_conflict", err.Error())

	case errors.Is(err, workflow.ErrInvalidState):
		writeProblem(c, http.StatusConflict, "invalid_state", err.Error())

	default:
		h.logger.Error("Unhandled service error",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		writeProblem(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
