package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"registra/internal/database"
	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
)

// workflowService drives the declaration status state machine: sequential
// multi-role approval with delegation substitution, query/rejection paths,
// go-live and archival. Every transition runs in one transaction with the
// declaration row locked; the matching workflow event is appended after the
// transaction commits. Invalid transitions fail with a state-conflict error
// and leave the declaration untouched.
type workflowService struct {
	db     *gorm.DB
	events EventRecorder
}

// NewWorkflowService creates a new WorkflowEngine.
func NewWorkflowService(db *gorm.DB, events EventRecorder) WorkflowEngine {
	return &workflowService{db: db, events: events}
}

func lockDeclaration(tx *gorm.DB, declarationID string) (*models.Declaration, error) {
	var decl models.Declaration
	if err := database.LockForUpdate(tx).First(&decl, "id = ?", declarationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDeclarationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &decl, nil
}

// firstStep returns the lowest configured step number for a company.
func firstStep(tx *gorm.DB, companyID string) (int, error) {
	var steps []int
	err := tx.Model(&models.ApprovalStep{}).
		Where("company_id = ?", companyID).
		Order("step_no ASC").
		Limit(1).
		Pluck("step_no", &steps).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(steps) == 0 {
		return 0, apperrors.ErrStepNotConfigured
	}
	return steps[0], nil
}

// nextStep returns the lowest configured step number greater than current,
// or false when current is the final step.
func nextStep(tx *gorm.DB, companyID string, current int) (int, bool, error) {
	var steps []int
	err := tx.Model(&models.ApprovalStep{}).
		Where("company_id = ? AND step_no > ?", companyID, current).
		Order("step_no ASC").
		Limit(1).
		Pluck("step_no", &steps).Error
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(steps) == 0 {
		return 0, false, nil
	}
	return steps[0], true, nil
}

// Submit moves a DRAFT declaration into the approval sequence, or re-enters
// a QUERY_RAISED declaration at the step the query was raised on. Requires
// rate_per_share and record_date to be set.
func (s *workflowService) Submit(declarationID, actorID string) (*models.Declaration, error) {
	var decl *models.Declaration
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		decl, err = lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}

		switch decl.Status {
		case models.DeclarationDraft, models.DeclarationQueryRaised:
		default:
			return apperrors.WithMessage(apperrors.ErrInvalidTransition,
				fmt.Sprintf("declaration in status %s cannot be submitted", decl.Status))
		}
		if !decl.RatePerShare.IsPositive() {
			return apperrors.ErrRateNotSet
		}
		if decl.RecordDate == nil {
			return apperrors.ErrRecordDateNotSet
		}

		if decl.Status == models.DeclarationDraft {
			step, err := firstStep(tx, decl.CompanyID)
			if err != nil {
				return err
			}
			decl.CurrentApprovalStep = &step
		}
		// QUERY_RAISED resubmission keeps the current step.

		now := time.Now()
		decl.Status = models.DeclarationSubmitted
		decl.SubmittedBy = &actorID
		decl.SubmittedAt = &now
		if err := tx.Save(decl).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(declarationID, models.EventSubmitted, actorID, "")
	return decl, nil
}

// actorMayActAs reports whether the actor satisfies a role requirement on
// this declaration: either holding the role directly, or being the reliever
// of an active delegation for that (declaration, role) pair.
func actorMayActAs(tx *gorm.DB, decl *models.Declaration, actor Actor, roleCode string) (bool, error) {
	if actor.HasRole(roleCode) {
		return true, nil
	}
	var count int64
	err := tx.Model(&models.ApprovalDelegation{}).
		Where("declaration_id = ? AND role_code = ? AND reliever_user_id = ?", decl.ID, roleCode, actor.ID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// RecordDecision records one approval decision at the declaration's current
// step and advances the state machine accordingly.
func (s *workflowService) RecordDecision(declarationID string, actor Actor, roleCode string, decision models.ApprovalDecision, comment string) (*models.Declaration, error) {
	var decl *models.Declaration
	var followUp []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		decl, err = lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}

		if decl.Status != models.DeclarationSubmitted || decl.CurrentApprovalStep == nil {
			return apperrors.WithMessage(apperrors.ErrInvalidTransition,
				fmt.Sprintf("no approval step is pending for a declaration in status %s", decl.Status))
		}
		step := *decl.CurrentApprovalStep

		var required int64
		if err := tx.Model(&models.ApprovalStep{}).
			Where("company_id = ? AND step_no = ? AND role_code = ?", decl.CompanyID, step, roleCode).
			Count(&required).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if required == 0 {
			return apperrors.WithMessage(apperrors.ErrValidation,
				fmt.Sprintf("role %s is not required at step %d", roleCode, step))
		}

		allowed, err := actorMayActAs(tx, decl, actor, roleCode)
		if err != nil {
			return err
		}
		if !allowed {
			return apperrors.ErrForbidden
		}

		now := time.Now()
		action := &models.ApprovalAction{
			DeclarationID: declarationID,
			StepNo:        step,
			RoleCode:      roleCode,
			Decision:      decision,
			ActorID:       actor.ID,
			Comment:       comment,
			ActedAt:       now,
		}

		switch decision {
		case models.DecisionApproved:
			var already int64
			if err := tx.Model(&models.ApprovalAction{}).
				Where("declaration_id = ? AND step_no = ? AND role_code = ? AND decision = ?",
					declarationID, step, roleCode, models.DecisionApproved).
				Count(&already).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if already > 0 {
				return apperrors.ErrDuplicateApproval
			}
			if err := tx.Create(action).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}

			complete, err := stepComplete(tx, decl, step)
			if err != nil {
				return err
			}
			if !complete {
				return tx.Save(decl).Error
			}

			followUp = append(followUp, models.EventStepApproved)
			next, ok, err := nextStep(tx, decl.CompanyID, step)
			if err != nil {
				return err
			}
			if ok {
				decl.CurrentApprovalStep = &next
			} else {
				decl.Status = models.DeclarationApproved
				decl.ApprovedBy = &actor.ID
				decl.ApprovedAt = &now
				decl.CurrentApprovalStep = nil
				followUp = append(followUp, models.EventApproved)
			}
			if err := tx.Save(decl).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil

		case models.DecisionRejected:
			if comment == "" {
				return apperrors.WithMessage(apperrors.ErrReasonRequired, "rejection_reason is required")
			}
			if err := tx.Create(action).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			decl.Status = models.DeclarationRejected
			decl.RejectedBy = &actor.ID
			decl.RejectedAt = &now
			decl.RejectionReason = comment
			decl.CurrentApprovalStep = nil
			followUp = append(followUp, models.EventRejected)
			if err := tx.Save(decl).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil

		case models.DecisionQueryRaised:
			if err := tx.Create(action).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			decl.Status = models.DeclarationQueryRaised
			followUp = append(followUp, models.EventQueryRaised)
			if err := tx.Save(decl).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return nil

		default:
			return apperrors.WithMessage(apperrors.ErrValidation,
				fmt.Sprintf("unknown decision %s", decision))
		}
	})
	if err != nil {
		return nil, err
	}

	for _, eventType := range followUp {
		s.events.Record(declarationID, eventType, actor.ID, comment)
	}
	return decl, nil
}

// stepComplete reports whether every role configured at the step has an
// APPROVED decision recorded.
func stepComplete(tx *gorm.DB, decl *models.Declaration, step int) (bool, error) {
	var requiredRoles []string
	if err := tx.Model(&models.ApprovalStep{}).
		Where("company_id = ? AND step_no = ?", decl.CompanyID, step).
		Pluck("role_code", &requiredRoles).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var approvedRoles []string
	if err := tx.Model(&models.ApprovalAction{}).
		Where("declaration_id = ? AND step_no = ? AND decision = ?", decl.ID, step, models.DecisionApproved).
		Distinct("role_code").
		Pluck("role_code", &approvedRoles).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	approved := make(map[string]bool, len(approvedRoles))
	for _, r := range approvedRoles {
		approved[r] = true
	}
	for _, r := range requiredRoles {
		if !approved[r] {
			return false, nil
		}
	}
	return true, nil
}

// GoLive makes an APPROVED declaration live. A completed frozen run must
// exist, since everything downstream (exports, payments) reads from it.
// Once live, the declaration is immutable for editing purposes.
func (s *workflowService) GoLive(declarationID, actorID string) (*models.Declaration, error) {
	var decl *models.Declaration
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		decl, err = lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}
		if decl.Status != models.DeclarationApproved {
			return apperrors.WithMessage(apperrors.ErrInvalidTransition,
				fmt.Sprintf("declaration in status %s cannot go live; it must be APPROVED first", decl.Status))
		}
		if _, err := authoritativeRun(tx, declarationID); err != nil {
			if errors.Is(err, apperrors.ErrNoFrozenRun) {
				return apperrors.WithMessage(apperrors.ErrInvalidTransition,
					"declaration has no completed frozen entitlement run")
			}
			return err
		}

		now := time.Now()
		decl.Status = models.DeclarationLive
		decl.LiveAt = &now
		if err := tx.Save(decl).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(declarationID, models.EventGoLive, actorID, "")
	return decl, nil
}

// Archive retires a LIVE declaration. Terminal.
func (s *workflowService) Archive(declarationID, actorID string) (*models.Declaration, error) {
	var decl *models.Declaration
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		decl, err = lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}
		if decl.Status != models.DeclarationLive {
			return apperrors.WithMessage(apperrors.ErrInvalidTransition,
				fmt.Sprintf("declaration in status %s cannot be archived", decl.Status))
		}

		now := time.Now()
		decl.ArchivedFromStatus = string(decl.Status)
		decl.Status = models.DeclarationArchived
		decl.ArchivedAt = &now
		if err := tx.Save(decl).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(declarationID, models.EventArchived, actorID, "")
	return decl, nil
}

// CreateDelegation grants a reliever temporary authority for one role on
// one declaration.
func (s *workflowService) CreateDelegation(declarationID, roleCode, relieverUserID, assignedBy string) (*models.ApprovalDelegation, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return nil, err
	}

	var configured int64
	if err := s.db.Model(&models.ApprovalStep{}).
		Where("company_id = ? AND role_code = ?", decl.CompanyID, roleCode).
		Count(&configured).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if configured == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation,
			fmt.Sprintf("role %s is not part of the company's approval sequence", roleCode))
	}

	var existing int64
	if err := s.db.Model(&models.ApprovalDelegation{}).
		Where("declaration_id = ? AND role_code = ? AND reliever_user_id = ?", declarationID, roleCode, relieverUserID).
		Count(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing > 0 {
		return nil, apperrors.ErrDuplicateDelegation
	}

	delegation := &models.ApprovalDelegation{
		DeclarationID:  declarationID,
		RoleCode:       roleCode,
		RelieverUserID: relieverUserID,
		AssignedBy:     assignedBy,
	}
	if err := s.db.Create(delegation).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.events.Record(declarationID, models.EventDelegationAssigned, assignedBy,
		fmt.Sprintf("role %s delegated to %s", roleCode, relieverUserID))
	return delegation, nil
}

// RevokeDelegation withdraws a previously granted delegation.
func (s *workflowService) RevokeDelegation(declarationID, delegationID, actorID string) error {
	var delegation models.ApprovalDelegation
	err := s.db.Where("id = ? AND declaration_id = ?", delegationID, declarationID).First(&delegation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrDelegationNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.db.Delete(&delegation).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.events.Record(declarationID, models.EventDelegationRevoked, actorID,
		fmt.Sprintf("delegation of role %s to %s revoked", delegation.RoleCode, delegation.RelieverUserID))
	return nil
}

// ListDelegations returns the active delegations for a declaration.
func (s *workflowService) ListDelegations(declarationID string) ([]models.ApprovalDelegation, error) {
	if _, err := loadDeclaration(s.db, declarationID); err != nil {
		return nil, err
	}
	var delegations []models.ApprovalDelegation
	if err := s.db.Where("declaration_id = ?", declarationID).
		Order("created_at ASC").
		Find(&delegations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return delegations, nil
}

// ListActions returns a declaration's approval decisions, oldest first.
func (s *workflowService) ListActions(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.ApprovalAction], error) {
	if _, err := loadDeclaration(s.db, declarationID); err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.ApprovalAction{}).Where("declaration_id = ?", declarationID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var actions []models.ApprovalAction
	if err := base.Order("acted_at ASC, id ASC").Scopes(pagination.Paginate(page)).Find(&actions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(actions, page.Page, page.PageSize, totalItems)
	return &result, nil
}
