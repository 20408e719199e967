package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
	"registra/internal/services"
)

// WorkflowHandler handles declaration workflow requests: submission,
// approval decisions, go-live, archival, and delegations.
type WorkflowHandler struct {
	workflow services.WorkflowEngine
	events   services.EventRecorder
}

// NewWorkflowHandler creates a new WorkflowHandler.
func NewWorkflowHandler(workflow services.WorkflowEngine, events services.EventRecorder) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow, events: events}
}

// DecisionRequest represents the request payload for an approval decision.
type DecisionRequest struct {
	RoleCode string                  `json:"role_code" binding:"required,role_code"`
	Decision models.ApprovalDecision `json:"decision" binding:"required,approval_decision"`
	Comment  string                  `json:"comment" binding:"omitempty,max=1000"`
}

// CreateDelegationRequest represents the request payload for assigning a reliever.
type CreateDelegationRequest struct {
	RoleCode       string `json:"role_code" binding:"required,role_code"`
	RelieverUserID string `json:"reliever_user_id" binding:"required,uuid"`
}

// SubmitDeclaration handles submitting a declaration into the approval sequence.
// @Summary     Submit declaration
// @Description Move a DRAFT or QUERY_RAISED declaration into the approval sequence
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} models.Declaration "Submitted declaration"
// @Failure     400 {object} ErrorResponse "Missing rate or record date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Invalid transition or no approval steps configured"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/submit [post]
func (h *WorkflowHandler) SubmitDeclaration(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.workflow.Submit(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// RecordDecision handles one approval decision at the current step.
// @Summary     Record approval decision
// @Description Record an APPROVED, REJECTED, or QUERY_RAISED decision at the declaration's current step
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Declaration ID"
// @Param       request body DecisionRequest true "Decision details"
// @Success     200 {object} models.Declaration "Declaration after the decision"
// @Failure     400 {object} ErrorResponse "Invalid input or missing rejection reason"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Actor lacks authority for the role"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "No step pending or duplicate approval"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/decisions [post]
func (h *WorkflowHandler) RecordDecision(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	declaration, err := h.workflow.RecordDecision(declarationID, actor, req.RoleCode, req.Decision, req.Comment)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// GoLive handles making an approved declaration live.
// @Summary     Go live
// @Description Make an APPROVED declaration with a completed frozen run LIVE
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} models.Declaration "Live declaration"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Not approved or no frozen run"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/go-live [post]
func (h *WorkflowHandler) GoLive(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.workflow.GoLive(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// ArchiveDeclaration handles retiring a live declaration.
// @Summary     Archive declaration
// @Description Retire a LIVE declaration; archival is terminal
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} models.Declaration "Archived declaration"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Declaration is not live"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/archive [post]
func (h *WorkflowHandler) ArchiveDeclaration(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.workflow.Archive(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// CreateDelegation handles assigning a reliever for a role on a declaration.
// @Summary     Create delegation
// @Description Grant a reliever temporary authority for one role on one declaration
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Declaration ID"
// @Param       request body CreateDelegationRequest true "Delegation details"
// @Success     201 {object} models.ApprovalDelegation "Created delegation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Delegation already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/delegations [post]
func (h *WorkflowHandler) CreateDelegation(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	delegation, err := h.workflow.CreateDelegation(declarationID, req.RoleCode, req.RelieverUserID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"delegation": delegation})
}

// RevokeDelegation handles withdrawing a delegation.
// @Summary     Revoke delegation
// @Description Withdraw a previously granted delegation
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string true "Declaration ID"
// @Param       delegation_id path string true "Delegation ID"
// @Success     200 {object} MessageResponse "Delegation revoked"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Delegation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/delegations/{delegation_id} [delete]
func (h *WorkflowHandler) RevokeDelegation(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	delegationID, err := parsePathID(c, "delegation_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.workflow.RevokeDelegation(declarationID, delegationID, actor.ID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Delegation revoked successfully"})
}

// GetDelegations handles listing a declaration's delegations.
// @Summary     List delegations
// @Description Get the active delegations for a declaration
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {array} models.ApprovalDelegation "Delegations"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/delegations [get]
func (h *WorkflowHandler) GetDelegations(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	delegations, err := h.workflow.ListDelegations(declarationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"delegations": delegations})
}

// GetActions handles listing a declaration's approval decisions.
// @Summary     List approval actions
// @Description Get a paginated list of a declaration's recorded decisions, oldest first
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.ApprovalAction] "Paginated actions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/actions [get]
func (h *WorkflowHandler) GetActions(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.workflow.ListActions(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetEvents handles listing a declaration's audit trail.
// @Summary     List workflow events
// @Description Get a paginated list of a declaration's audit events, newest first
// @Tags        workflow
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.WorkflowEvent] "Paginated events"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/events [get]
func (h *WorkflowHandler) GetEvents(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.events.ListEvents(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
