package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"registra/internal/services"
)

// ExportHandler handles entitlement export requests.
type ExportHandler struct {
	exportService services.ExportServicer
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService services.ExportServicer) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// ExportEntitlementsCSV handles exporting the frozen entitlements as CSV.
// @Summary     Export entitlements CSV
// @Description Download the authoritative frozen run of a live declaration as a CSV file
// @Tags        exports
// @Accept      json
// @Produce     text/csv
// @Security    BearerAuth
// @Param       id path string true "Declaration ID"
// @Success     200 {string} string "CSV file"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Declaration or frozen run not found"
// @Failure     409 {object} ErrorResponse "Declaration is not live"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /declarations/{id}/export/csv [get]
func (h *ExportHandler) ExportEntitlementsCSV(c *gin.Context) {
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

	// Buffer the file so a mid-stream failure still produces a clean JSON
	// error instead of a truncated download.
	var buf bytes.Buffer
	filename, err := h.exportService.ExportCSV(declarationID, actor.ID, &buf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
