package services

import (
	"errors"

	"gorm.io/gorm"

	"registra/internal/database"
	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
)

// declarationService owns declaration drafting. Post-submission transitions
// belong to the workflow engine; this service only ever touches DRAFT rows.
type declarationService struct {
	db     *gorm.DB
	events EventRecorder
}

// NewDeclarationService creates a new DeclarationServicer.
func NewDeclarationService(db *gorm.DB, events EventRecorder) DeclarationServicer {
	return &declarationService{db: db, events: events}
}

// CreateDeclaration drafts a declaration. The register must belong to the
// company and the (company, period_label) pair must be unused.
func (s *declarationService) CreateDeclaration(actorID string, input CreateDeclarationInput) (*models.Declaration, error) {
	var register models.Register
	err := s.db.Where("id = ? AND company_id = ?", input.RegisterID, input.CompanyID).First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "register does not belong to the company")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var duplicates int64
	err = s.db.Model(&models.Declaration{}).
		Where("company_id = ? AND period_label = ?", input.CompanyID, input.PeriodLabel).
		Count(&duplicates).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if duplicates > 0 {
		return nil, apperrors.ErrDuplicatePeriod
	}

	if input.SupplementaryOfID != nil {
		var parent models.Declaration
		err := s.db.Where("id = ? AND company_id = ?", *input.SupplementaryOfID, input.CompanyID).First(&parent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrValidation, "supplementary_of_declaration_id does not reference a declaration of the company")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	decl := &models.Declaration{
		CompanyID:                input.CompanyID,
		RegisterID:               input.RegisterID,
		SupplementaryOfID:        input.SupplementaryOfID,
		PeriodLabel:              input.PeriodLabel,
		DeclarationNo:            newReference("DIV"),
		RatePerShare:             input.RatePerShare,
		RecordDate:               input.RecordDate,
		PaymentDate:              input.PaymentDate,
		AnnouncementDate:         input.AnnouncementDate,
		ExcludeCautionAccounts:   input.ExcludeCautionAccounts,
		RequireActiveBankMandate: input.RequireActiveBankMandate,
		Status:                   models.DeclarationDraft,
		CreatedBy:                actorID,
	}
	if err := s.db.Create(decl).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.events.Record(decl.ID, models.EventCreated, actorID, "")
	return decl, nil
}

// GetDeclaration loads one declaration by id.
func (s *declarationService) GetDeclaration(declarationID string) (*models.Declaration, error) {
	return loadDeclaration(s.db, declarationID)
}

// ListDeclarations pages a company's declarations, newest first, optionally
// filtered by status.
func (s *declarationService) ListDeclarations(companyID string, status *models.DeclarationStatus, page pagination.PageRequest) (*pagination.PageResponse[models.Declaration], error) {
	page.Defaults()

	base := s.db.Model(&models.Declaration{}).Where("company_id = ?", companyID)
	if status != nil {
		base = base.Where("status = ?", *status)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var declarations []models.Declaration
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&declarations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(declarations, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateDeclaration applies partial updates to a DRAFT declaration. Nil
// fields are left unchanged.
func (s *declarationService) UpdateDeclaration(declarationID, actorID string, input UpdateDeclarationInput) (*models.Declaration, error) {
	var decl *models.Declaration
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		decl, err = lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}
		if !decl.CanBeEdited() {
			return apperrors.ErrDeclarationNotEditable
		}

		if input.PeriodLabel != nil && *input.PeriodLabel != decl.PeriodLabel {
			var duplicates int64
			err := tx.Model(&models.Declaration{}).
				Where("company_id = ? AND period_label = ? AND id <> ?", decl.CompanyID, *input.PeriodLabel, decl.ID).
				Count(&duplicates).Error
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if duplicates > 0 {
				return apperrors.ErrDuplicatePeriod
			}
			decl.PeriodLabel = *input.PeriodLabel
		}
		if input.RatePerShare != nil {
			decl.RatePerShare = *input.RatePerShare
		}
		if input.RecordDate != nil {
			decl.RecordDate = input.RecordDate
		}
		if input.PaymentDate != nil {
			decl.PaymentDate = input.PaymentDate
		}
		if input.AnnouncementDate != nil {
			decl.AnnouncementDate = input.AnnouncementDate
		}
		if input.ExcludeCautionAccounts != nil {
			decl.ExcludeCautionAccounts = *input.ExcludeCautionAccounts
		}
		if input.RequireActiveBankMandate != nil {
			decl.RequireActiveBankMandate = *input.RequireActiveBankMandate
		}

		if err := tx.Save(decl).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// DeleteDeclaration soft-deletes a DRAFT declaration. Workflow events remain
// behind as the audit record of the draft's existence.
func (s *declarationService) DeleteDeclaration(declarationID, actorID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var decl models.Declaration
		if err := database.LockForUpdate(tx).First(&decl, "id = ?", declarationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrDeclarationNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !decl.CanBeDeleted() {
			return apperrors.ErrDeclarationNotEditable
		}
		if err := tx.Delete(&decl).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
