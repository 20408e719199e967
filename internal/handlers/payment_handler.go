package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
	"registra/internal/services"
)

// PaymentHandler handles dividend payment requests.
type PaymentHandler struct {
	paymentService services.PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// UpdatePaymentStatusRequest represents the request payload for a settlement transition.
type UpdatePaymentStatusRequest struct {
	Status models.PaymentStatus `json:"status" binding:"required,payment_status"`
	Reason string               `json:"reason" binding:"omitempty,max=1000"`
}

// ReissuePaymentRequest represents the request payload for reissuing a payment.
type ReissuePaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=1000"`
}

// GeneratePaymentsResponse reports how many payments a generation pass created.
type GeneratePaymentsResponse struct {
	Created int `json:"created"`
}

// GeneratePayments handles creating payments for a live declaration.
// @Summary     Generate payments
// @Description Create one initiated payment per payable entitlement of the authoritative frozen run that has none yet
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     201 {object} GeneratePaymentsResponse "Number of payments created"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration or frozen run not found"
// @Failure     409 {object} ErrorResponse "Declaration is not live"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/payments/generate [post]
func (h *PaymentHandler) GeneratePayments(c *gin.Context) {
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

	created, err := h.paymentService.GeneratePayments(declarationID, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": created})
}

// GetPayments handles listing a declaration's payments.
// @Summary     List payments
// @Description Get a paginated list of payments against the authoritative frozen run
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Declaration ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 500)"
// @Success     200 {object} pagination.PageResponse[models.Payment] "Paginated payments"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration or frozen run not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/payments [get]
func (h *PaymentHandler) GetPayments(c *gin.Context) {
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

	result, err := h.paymentService.ListPayments(declarationID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdatePaymentStatus handles one payment settlement transition.
// @Summary     Update payment status
// @Description Move a payment from initiated to paid/failed, or from paid to disputed
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "Payment ID"
// @Param       request body UpdatePaymentStatusRequest true "Target status and optional reason"
// @Success     200 {object} models.Payment "Updated payment"
// @Failure     400 {object} ErrorResponse "Invalid input or missing reason"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /payments/{id}/status [patch]
func (h *PaymentHandler) UpdatePaymentStatus(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	paymentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	payment, err := h.paymentService.UpdatePaymentStatus(paymentID, req.Status, req.Reason, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ReissuePayment handles replacing a failed or disputed payment.
// @Summary     Reissue payment
// @Description Replace a failed or disputed payment with a fresh initiated one, preserving lineage
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Payment ID"
// @Param       request body ReissuePaymentRequest true "Reissue reason"
// @Success     201 {object} services.ReissueResult "Original and replacement payments"
// @Failure     400 {object} ErrorResponse "Missing reason"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Failure     409 {object} ErrorResponse "Payment is not reissuable or declaration not live"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /payments/{id}/reissue [post]
func (h *PaymentHandler) ReissuePayment(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	paymentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReissuePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.paymentService.ReissuePayment(paymentID, req.Reason, actor.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
