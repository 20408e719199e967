package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"registra/internal/database"
	apperrors "registra/internal/errors"
	"registra/internal/logger"
	"registra/internal/models"
	"registra/internal/pagination"
)

// entitlementBatchSize is the insert batch size for run materialization.
const entitlementBatchSize = 500

// runService owns the entitlement run lifecycle: disposable PREVIEW
// snapshots and the FROZEN runs that exports and payments are based on.
type runService struct {
	db     *gorm.DB
	events EventRecorder
}

// NewRunService creates a new EntitlementRunManager.
func NewRunService(db *gorm.DB, events EventRecorder) EntitlementRunManager {
	return &runService{db: db, events: events}
}

// freezable reports whether a declaration is in a pre-live state where its
// entitlements may be locked in.
func freezable(status models.DeclarationStatus) bool {
	return status == models.DeclarationSubmitted || status == models.DeclarationApproved
}

// FreezeEntitlements materializes the full eligible population as persisted
// entitlement rows tied to a new FROZEN run and copies the run totals onto
// the declaration.
//
// The run header is created first in its own transaction; materialization
// happens in a second, all-or-nothing transaction. On failure the run is
// marked FAILED with the error message, no entitlement rows remain, and the
// declaration's totals (and therefore its authoritative-run selection) are
// untouched. Re-freezing creates a new run; completed runs are never
// mutated.
func (s *runService) FreezeEntitlements(declarationID, actorID string) (*models.EntitlementRun, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if !freezable(decl.Status) {
		return nil, apperrors.ErrNotFreezable
	}
	if err := checkComputable(decl); err != nil {
		return nil, err
	}

	run := &models.EntitlementRun{
		DeclarationID: declarationID,
		RunType:       models.RunFrozen,
		RunStatus:     models.RunPending,
		ComputedBy:    actorID,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the declaration row so concurrent freezes serialize and the
		// population is read against the transaction's snapshot.
		var locked models.Declaration
		if err := database.LockForUpdate(tx).First(&locked, "id = ?", declarationID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !freezable(locked.Status) {
			return apperrors.ErrNotFreezable
		}

		acc := newTotalsAccumulator()
		batch := make([]models.Entitlement, 0, entitlementBatchSize)

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := tx.Create(&batch).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrComputationFailed, err)
			}
			batch = batch[:0]
			return nil
		}

		err := forEachLine(tx, &locked, nil, func(line EntitlementLine) error {
			acc.add(line, &locked)
			batch = append(batch, models.Entitlement{
				EntitlementRunID:    run.ID,
				RegisterAccountID:   line.RegisterAccountID,
				ShareClassID:        line.ShareClassID,
				EligibleShares:      line.EligibleShares,
				GrossAmount:         line.GrossAmount,
				TaxAmount:           line.TaxAmount,
				NetAmount:           line.NetAmount,
				IsPayable:           line.IsPayable,
				IneligibilityReason: line.IneligibilityReason,
			})
			if len(batch) == entitlementBatchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := flush(); err != nil {
			return err
		}

		totals := acc.finish()
		now := time.Now()
		count := totals.EligibleShareholdersCount

		runUpdates := map[string]interface{}{
			"run_status":                  models.RunCompleted,
			"computed_at":                 now,
			"total_shares":                totals.TotalShares,
			"total_gross_amount":          totals.TotalGross,
			"total_tax_amount":            totals.TotalTax,
			"total_net_amount":            totals.TotalNet,
			"rounding_residue":            totals.RoundingResidue,
			"eligible_shareholders_count": count,
		}
		if err := tx.Model(&models.EntitlementRun{}).Where("id = ?", run.ID).Updates(runUpdates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrComputationFailed, err)
		}

		declUpdates := map[string]interface{}{
			"is_frozen":                   true,
			"total_gross_amount":          totals.TotalGross,
			"total_tax_amount":            totals.TotalTax,
			"total_net_amount":            totals.TotalNet,
			"rounding_residue":            totals.RoundingResidue,
			"eligible_shareholders_count": count,
		}
		if err := tx.Model(&models.Declaration{}).Where("id = ?", declarationID).Updates(declUpdates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrComputationFailed, err)
		}
		return nil
	})
	if err != nil {
		s.markRunFailed(run.ID, err)
		return nil, err
	}

	s.events.Record(declarationID, models.EventEntitlementsFrozen, actorID,
		fmt.Sprintf("entitlement run %s frozen", run.ID))

	return s.reloadRun(run.ID)
}

// RecordPreviewRun persists a PREVIEW run header carrying the grand totals
// of the current live positions. Preview runs never get entitlement rows and
// are never exported or paid against; they exist so reviewers can compare
// snapshots over time.
func (s *runService) RecordPreviewRun(declarationID, actorID string) (*models.EntitlementRun, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if err := checkComputable(decl); err != nil {
		return nil, err
	}

	acc := newTotalsAccumulator()
	if err := forEachLine(s.db, decl, nil, func(line EntitlementLine) error {
		acc.add(line, decl)
		return nil
	}); err != nil {
		return nil, err
	}
	totals := acc.finish()

	now := time.Now()
	count := totals.EligibleShareholdersCount
	run := &models.EntitlementRun{
		DeclarationID:             declarationID,
		RunType:                   models.RunPreview,
		RunStatus:                 models.RunCompleted,
		ComputedAt:                &now,
		ComputedBy:                actorID,
		TotalShares:               decimal.NullDecimal{Decimal: totals.TotalShares, Valid: true},
		TotalGrossAmount:          decimal.NullDecimal{Decimal: totals.TotalGross, Valid: true},
		TotalTaxAmount:            decimal.NullDecimal{Decimal: totals.TotalTax, Valid: true},
		TotalNetAmount:            decimal.NullDecimal{Decimal: totals.TotalNet, Valid: true},
		RoundingResidue:           decimal.NullDecimal{Decimal: totals.RoundingResidue, Valid: true},
		EligibleShareholdersCount: &count,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.events.Record(declarationID, models.EventPreviewRun, actorID,
		fmt.Sprintf("preview run %s recorded", run.ID))

	return run, nil
}

// AuthoritativeRun returns the run exports and payments must use: the most
// recent COMPLETED FROZEN run by computed_at.
func (s *runService) AuthoritativeRun(declarationID string) (*models.EntitlementRun, error) {
	return authoritativeRun(s.db, declarationID)
}

func authoritativeRun(db *gorm.DB, declarationID string) (*models.EntitlementRun, error) {
	var run models.EntitlementRun
	err := db.Where("declaration_id = ? AND run_type = ? AND run_status = ?",
		declarationID, models.RunFrozen, models.RunCompleted).
		Order("computed_at DESC, created_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNoFrozenRun
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &run, nil
}

// ListRuns returns a declaration's run headers, newest first.
func (s *runService) ListRuns(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.EntitlementRun], error) {
	if _, err := loadDeclaration(s.db, declarationID); err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.EntitlementRun{}).Where("declaration_id = ?", declarationID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var runs []models.EntitlementRun
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&runs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(runs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListFrozenEntitlements pages through the authoritative frozen run's line
// items in the same deterministic order they were materialized in.
func (s *runService) ListFrozenEntitlements(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.Entitlement], error) {
	if _, err := loadDeclaration(s.db, declarationID); err != nil {
		return nil, err
	}
	run, err := authoritativeRun(s.db, declarationID)
	if err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.Entitlement{}).Where("entitlement_run_id = ?", run.ID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.Entitlement
	if err := base.Order("register_account_id, share_class_id").
		Scopes(pagination.Paginate(page)).
		Preload("RegisterAccount.Shareholder").
		Preload("ShareClass").
		Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// markRunFailed records the failure on the run header. The failed run stays
// behind as the audit record of the attempt.
func (s *runService) markRunFailed(runID string, cause error) {
	updates := map[string]interface{}{
		"run_status":    models.RunFailed,
		"error_message": cause.Error(),
	}
	if err := s.db.Model(&models.EntitlementRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		logger.Get().Errorw("failed to mark entitlement run as failed",
			"error", err,
			"run_id", runID,
		)
	}
}

func (s *runService) reloadRun(runID string) (*models.EntitlementRun, error) {
	var run models.EntitlementRun
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &run, nil
}
