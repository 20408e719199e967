package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "registra/internal/errors"
	"registra/internal/pagination"
	"registra/internal/services"
)

// EntitlementHandler handles entitlement computation and run requests.
type EntitlementHandler struct {
	entitlementService services.EntitlementComputer
	runService         services.EntitlementRunManager
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(entitlementService services.EntitlementComputer, runService services.EntitlementRunManager) *EntitlementHandler {
	return &EntitlementHandler{entitlementService: entitlementService, runService: runService}
}

// PreviewEntitlements handles the read-only entitlement preview.
// @Summary     Preview entitlements
// @Description Compute one page of entitlement lines with page and grand totals; nothing is persisted
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} services.EntitlementPreview "Computed preview"
// @Failure     400 {object} ErrorResponse "Missing computation inputs"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/entitlements/preview [get]
func (h *EntitlementHandler) PreviewEntitlements(c *gin.Context) {
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

	preview, err := h.entitlementService.PreviewEntitlements(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// GetGrandTotals handles the aggregate-only computation.
// @Summary     Compute grand totals
// @Description Aggregate the entire eligible population of a declaration without persisting anything
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} services.GrandTotals "Grand totals"
// @Failure     400 {object} ErrorResponse "Missing computation inputs"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/entitlements/totals [get]
func (h *EntitlementHandler) GetGrandTotals(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	totals, err := h.entitlementService.ComputeGrandTotals(declarationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

// RecordPreviewRun handles persisting a preview snapshot header.
// @Summary     Record a preview run
// @Description Persist a PREVIEW run header carrying the current grand totals, without entitlement rows
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     201 {object} models.EntitlementRun "Recorded preview run"
// @Failure     400 {object} ErrorResponse "Missing computation inputs"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/entitlements/preview-runs [post]
func (h *EntitlementHandler) RecordPreviewRun(c *gin.Context) {
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

	run, err := h.runService.RecordPreviewRun(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"run": run})
}

// FreezeEntitlements handles materializing the frozen entitlement run.
// @Summary     Freeze entitlements
// @Description Materialize the eligible population as immutable entitlement rows tied to a new FROZEN run
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     201 {object} models.EntitlementRun "Completed frozen run"
// @Failure     400 {object} ErrorResponse "Missing computation inputs"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Declaration is not freezable"
// @Failure     500 {object} ErrorResponse "Materialization failed"
// @Router      /declarations/{id}/entitlements/freeze [post]
func (h *EntitlementHandler) FreezeEntitlements(c *gin.Context) {
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

	run, err := h.runService.FreezeEntitlements(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"run": run})
}

// GetRuns handles listing a declaration's entitlement runs.
// @Summary     List entitlement runs
// @Description Get a paginated list of a declaration's preview and frozen runs, newest first
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.EntitlementRun] "Paginated runs"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/runs [get]
func (h *EntitlementHandler) GetRuns(c *gin.Context) {
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

	result, err := h.runService.ListRuns(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFrozenEntitlements handles listing the authoritative run's lines.
// @Summary     List frozen entitlements
// @Description Page through the authoritative frozen run's entitlement lines in materialized order
// @Tags        entitlements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.Entitlement] "Paginated entitlements"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration or frozen run not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/entitlements [get]
func (h *EntitlementHandler) GetFrozenEntitlements(c *gin.Context) {
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

	result, err := h.runService.ListFrozenEntitlements(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
