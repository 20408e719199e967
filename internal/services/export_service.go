package services

import (
	"encoding/csv"
	"fmt"
	"io"

	"gorm.io/gorm"

	apperrors "registra/internal/errors"
	"registra/internal/models"
)

// exportBatchSize bounds how many entitlement rows are loaded per query
// while streaming an export.
const exportBatchSize = 1000

// exportService renders the authoritative frozen run of a live declaration
// as CSV. Exports always read the frozen rows, never a recomputation, so the
// file matches what was approved even if positions have since changed.
type exportService struct {
	db     *gorm.DB
	events EventRecorder
}

// NewExportService creates a new ExportServicer.
func NewExportService(db *gorm.DB, events EventRecorder) ExportServicer {
	return &exportService{db: db, events: events}
}

var exportHeader = []string{
	"account_no",
	"shareholder_name",
	"share_class",
	"eligible_shares",
	"gross_amount",
	"tax_amount",
	"net_amount",
	"is_payable",
	"ineligibility_reason",
}

// ExportCSV writes the authoritative frozen run's entitlement lines to w in
// the materialized account order and returns the suggested filename. The
// declaration must be LIVE.
func (s *exportService) ExportCSV(declarationID, actorID string, w io.Writer) (string, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return "", err
	}
	if !decl.IsLive() {
		return "", apperrors.ErrDeclarationNotLive
	}
	run, err := authoritativeRun(s.db, declarationID)
	if err != nil {
		return "", err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for offset := 0; ; offset += exportBatchSize {
		var rows []models.Entitlement
		err := s.db.Where("entitlement_run_id = ?", run.ID).
			Order("register_account_id, share_class_id").
			Offset(offset).Limit(exportBatchSize).
			Preload("RegisterAccount.Shareholder").
			Preload("ShareClass").
			Find(&rows).Error
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for _, ent := range rows {
			record := []string{
				ent.RegisterAccount.AccountNo,
				ent.RegisterAccount.Shareholder.FullName,
				ent.ShareClass.Code,
				ent.EligibleShares.StringFixed(SharePrecision),
				ent.GrossAmount.StringFixed(MoneyPrecision),
				ent.TaxAmount.StringFixed(MoneyPrecision),
				ent.NetAmount.StringFixed(MoneyPrecision),
				fmt.Sprintf("%t", ent.IsPayable),
				string(ent.IneligibilityReason),
			}
			if err := writer.Write(record); err != nil {
				return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if len(rows) < exportBatchSize {
			break
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	filename := fmt.Sprintf("%s-entitlements.csv", decl.DeclarationNo)
	s.events.Record(declarationID, models.EventExportedCSV, actorID,
		fmt.Sprintf("entitlements of run %s exported", run.ID))
	return filename, nil
}
