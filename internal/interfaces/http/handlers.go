package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kwayummari/ghf-approval-engine/internal/application/service"
	appwf "github.com/kwayummari/ghf-approval-engine/internal/application/workflow"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
	"github.com/kwayummari/ghf-approval-engine/pkg/utils"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// DefinitionLister exposes the registered workflow definitions
type DefinitionLister interface {
	All() []*workflow.Definition
}

// HealthFunc reports overall health plus per-component details
type HealthFunc func(ctx context.Context) (healthy bool, components interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      appwf.TransitionEngine
	requests    service.RequestService
	definitions DefinitionLister
	health      HealthFunc
	validator   *validator.Validate
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine appwf.TransitionEngine,
	requests service.RequestService,
	definitions DefinitionLister,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:      engine,
		requests:    requests,
		definitions: definitions,
		health:      health,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: nowRFC3339(),
		Version:   Version,
	}
	code := http.StatusOK

	if h.health != nil {
		healthy, components := h.health(c.Request.Context())
		response.Components = components
		if !healthy {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// ListDefinitions handles GET /api/v1/definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.definitions.All(),
	})
}

// CreateRequest handles POST /api/v1/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		missingActor(c)
		return
	}

	var body CreateRequestBody
	if !h.bind(c, &body) {
		return
	}

	req, err := h.requests.CreateDraft(c.Request.Context(), service.DraftInput{
		RequestType: body.RequestType,
		SubjectID:   utils.SanitizeString(body.SubjectID),
		SubmittedBy: actor.ID,
		Payload:     body.Payload,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// ListPending handles GET /api/v1/requests/pending
func (h *Handlers) ListPending(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		missingActor(c)
		return
	}

	reqs, err := h.engine.ListPending(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reqs})
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ListAudit handles GET /api/v1/requests/:id/audit
func (h *Handlers) ListAudit(c *gin.Context) {
	id := c.Param("id")

	seq, err := h.engine.ListAudit(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	entries := make([]*entity.AuditEntry, 0)
	for entry, err := range seq {
		if err != nil {
			h.handleServiceError(c, fmt.Errorf("read audit trail: %w", err))
			return
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    AuditTrailResponse{RequestID: id, Entries: entries},
	})
}

// ListSideEffects handles GET /api/v1/requests/:id/side-effects
func (h *Handlers) ListSideEffects(c *gin.Context) {
	records, err := h.requests.SideEffects(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if records == nil {
		records = []*entity.SideEffectRecord{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// RetrySideEffects handles POST /api/v1/requests/:id/side-effects/retry
func (h *Handlers) RetrySideEffects(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		missingActor(c)
		return
	}

	outcomes, err := h.engine.RetrySideEffectsAs(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toOutcomes(outcomes)})
}

// History handles GET /api/v1/requests/:id/history
func (h *Handlers) History(c *gin.Context) {
	chain, err := h.requests.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: chain})
}

// Transition returns the handler for POST /api/v1/requests/:id/<action>
func (h *Handlers) Transition(action workflow.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			missingActor(c)
			return
		}

		var body TransitionBody
		if !h.bind(c, &body) {
			return
		}

		cmd := appwf.Command{
			RequestID:       c.Param("id"),
			Actor:           actor,
			ExpectedVersion: *body.ExpectedVersion,
			Comment:         utils.SanitizeComment(body.Comment),
		}

		req, err := h.fire(c.Request.Context(), action, cmd)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, Response{Success: true, Data: req})
	}
}

func (h *Handlers) fire(ctx context.Context, action workflow.Action, cmd appwf.Command) (*entity.ApprovalRequest, error) {
	switch action {
	case workflow.ActionSubmit:
		return h.engine.Submit(ctx, cmd)
	case workflow.ActionApprove:
		return h.engine.Approve(ctx, cmd)
	case workflow.ActionReject:
		return h.engine.Reject(ctx, cmd)
	case workflow.ActionDisburse:
		return h.engine.Disburse(ctx, cmd)
	case workflow.ActionCancel:
		return h.engine.Cancel(ctx, cmd)
	default:
		return nil, fmt.Errorf("%w: unsupported action %s", workflow.ErrValidation, action)
	}
}

// Resubmit handles POST /api/v1/requests/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		missingActor(c)
		return
	}

	var body ResubmitBody
	if c.Request.ContentLength != 0 && !h.bind(c, &body) {
		return
	}

	req, err := h.requests.Resubmit(c.Request.Context(), service.ResubmitInput{
		RejectedID:      c.Param("id"),
		ActorID:         actor.ID,
		NewSubjectID:    utils.SanitizeString(body.SubjectID),
		Payload:         body.Payload,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// bind decodes the JSON body into dst and validates it, writing a problem on failure
func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}
