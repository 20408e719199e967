package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
	"registra/internal/services"
)

// DeclarationHandler handles dividend declaration requests.
type DeclarationHandler struct {
	declarationService services.DeclarationServicer
}

// NewDeclarationHandler creates a new DeclarationHandler.
func NewDeclarationHandler(declarationService services.DeclarationServicer) *DeclarationHandler {
	return &DeclarationHandler{declarationService: declarationService}
}

// CreateDeclarationRequest represents the request payload for drafting a declaration.
type CreateDeclarationRequest struct {
	CompanyID                string          `json:"company_id" binding:"required,uuid"`
	RegisterID               string          `json:"register_id" binding:"required,uuid"`
	SupplementaryOfID        *string         `json:"supplementary_of_declaration_id" binding:"omitempty,uuid"`
	PeriodLabel              string          `json:"period_label" binding:"required,min=1,max=50"`
	RatePerShare             decimal.Decimal `json:"rate_per_share"`
	RecordDate               string          `json:"record_date" binding:"omitempty,datetime=2006-01-02"`
	PaymentDate              string          `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	AnnouncementDate         string          `json:"announcement_date" binding:"omitempty,datetime=2006-01-02"`
	ExcludeCautionAccounts   bool            `json:"exclude_caution_accounts"`
	RequireActiveBankMandate bool            `json:"require_active_bank_mandate"`
}

// UpdateDeclarationRequest represents the request payload for editing a draft.
type UpdateDeclarationRequest struct {
	PeriodLabel              *string          `json:"period_label" binding:"omitempty,min=1,max=50"`
	RatePerShare             *decimal.Decimal `json:"rate_per_share"`
	RecordDate               string           `json:"record_date" binding:"omitempty,datetime=2006-01-02"`
	PaymentDate              string           `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	AnnouncementDate         string           `json:"announcement_date" binding:"omitempty,datetime=2006-01-02"`
	ExcludeCautionAccounts   *bool            `json:"exclude_caution_accounts"`
	RequireActiveBankMandate *bool            `json:"require_active_bank_mandate"`
}

// CreateDeclaration handles drafting a new dividend declaration.
// @Summary     Create a declaration
// @Description Draft a new dividend declaration for a company register
// @Tags        declarations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateDeclarationRequest true "Declaration details"
// @Success     201 {object} models.Declaration "Declaration created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate period label"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations [post]
func (h *DeclarationHandler) CreateDeclaration(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateDeclarationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	input := services.CreateDeclarationInput{
		CompanyID:                req.CompanyID,
		RegisterID:               req.RegisterID,
		SupplementaryOfID:        req.SupplementaryOfID,
		PeriodLabel:              req.PeriodLabel,
		RatePerShare:             req.RatePerShare,
		ExcludeCautionAccounts:   req.ExcludeCautionAccounts,
		RequireActiveBankMandate: req.RequireActiveBankMandate,
	}
	if input.RecordDate, err = parseDate(req.RecordDate, "record_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if input.PaymentDate, err = parseDate(req.PaymentDate, "payment_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if input.AnnouncementDate, err = parseDate(req.AnnouncementDate, "announcement_date"); err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.declarationService.CreateDeclaration(actor.ID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"declaration": declaration})
}

// GetDeclarations handles listing a company's declarations.
// @Summary     List declarations
// @Description Get a paginated list of declarations for a company
// @Tags        declarations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       company_id query string true  "Company ID"
// @Param       status     query string false "Filter by status"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.Declaration] "Paginated declarations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations [get]
func (h *DeclarationHandler) GetDeclarations(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	companyID := c.Query("company_id")
	if companyID == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "company_id is required"))
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	var status *models.DeclarationStatus
	if v := c.Query("status"); v != "" {
		s := models.DeclarationStatus(v)
		switch s {
		case models.DeclarationDraft, models.DeclarationSubmitted, models.DeclarationQueryRaised,
			models.DeclarationApproved, models.DeclarationLive, models.DeclarationRejected,
			models.DeclarationArchived:
			status = &s
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "unknown status filter"))
			return
		}
	}

	result, err := h.declarationService.ListDeclarations(companyID, status, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDeclaration handles retrieving a specific declaration.
// @Summary     Get declaration by ID
// @Description Get a specific dividend declaration by ID
// @Tags        declarations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} models.Declaration "Declaration details"
// @Failure     400 {object} ErrorResponse "Invalid declaration ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id} [get]
func (h *DeclarationHandler) GetDeclaration(c *gin.Context) {
	if _, err := getActor(c); err != nil {
		respondWithError(c, err)
		return
	}

	declarationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.declarationService.GetDeclaration(declarationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// UpdateDeclaration handles editing a draft declaration.
// @Summary     Update declaration
// @Description Update a DRAFT declaration; submitted declarations are immutable
// @Tags        declarations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Declaration ID"
// @Param       request body UpdateDeclarationRequest true "Updated declaration details"
// @Success     200 {object} models.Declaration "Updated declaration"
// @Failure     400 {object} ErrorResponse "Invalid input or declaration ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Declaration is not editable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id} [put]
func (h *DeclarationHandler) UpdateDeclaration(c *gin.Context) {
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

	var req UpdateDeclarationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	input := services.UpdateDeclarationInput{
		PeriodLabel:              req.PeriodLabel,
		RatePerShare:             req.RatePerShare,
		ExcludeCautionAccounts:   req.ExcludeCautionAccounts,
		RequireActiveBankMandate: req.RequireActiveBankMandate,
	}
	if input.RecordDate, err = parseDate(req.RecordDate, "record_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if input.PaymentDate, err = parseDate(req.PaymentDate, "payment_date"); err != nil {
		respondWithError(c, err)
		return
	}
	if input.AnnouncementDate, err = parseDate(req.AnnouncementDate, "announcement_date"); err != nil {
		respondWithError(c, err)
		return
	}

	declaration, err := h.declarationService.UpdateDeclaration(declarationID, actor.ID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"declaration": declaration})
}

// DeleteDeclaration handles deleting a draft declaration.
// @Summary     Delete declaration
// @Description Delete a DRAFT declaration (soft delete)
// @Tags        declarations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {object} MessageResponse "Declaration deleted"
// @Failure     400 {object} ErrorResponse "Invalid declaration ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration not found"
// @Failure     409 {object} ErrorResponse "Declaration is not deletable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id} [delete]
func (h *DeclarationHandler) DeleteDeclaration(c *gin.Context) {
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

	if err := h.declarationService.DeleteDeclaration(declarationID, actor.ID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Declaration deleted successfully"})
}
