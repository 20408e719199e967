package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"registra/internal/database"
	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
)

// paymentService generates and manages payouts against the authoritative
// frozen run of a live declaration.
type paymentService struct {
	db     *gorm.DB
	events EventRecorder
}

// NewPaymentService creates a new PaymentServicer.
func NewPaymentService(db *gorm.DB, events EventRecorder) PaymentServicer {
	return &paymentService{db: db, events: events}
}

// GeneratePayments creates one initiated payment per payable entitlement of
// the authoritative frozen run that does not already have one. Calling it
// again tops up the missing payments only, so the operation is idempotent
// against the same run. Returns the number of payments created.
func (s *paymentService) GeneratePayments(declarationID, actorID string) (int, error) {
	created := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		decl, err := lockDeclaration(tx, declarationID)
		if err != nil {
			return err
		}
		if !decl.IsLive() {
			return apperrors.ErrDeclarationNotLive
		}
		run, err := authoritativeRun(tx, declarationID)
		if err != nil {
			return err
		}

		// Payable entitlements with no payment yet, regardless of the
		// payment's status: a failed payment blocks regeneration and must go
		// through reissue instead.
		var pending []models.Entitlement
		err = tx.Where("entitlement_run_id = ? AND is_payable = ?", run.ID, true).
			Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.entitlement_id = entitlements.id AND payments.deleted_at IS NULL)").
			Order("register_account_id, share_class_id").
			Preload("RegisterAccount").
			Find(&pending).Error
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		for _, ent := range pending {
			mandateID, err := activeMandateID(tx, ent.RegisterAccount.ShareholderID)
			if err != nil {
				return err
			}
			payment := models.Payment{
				EntitlementID: ent.ID,
				Reference:     newReference("PAY"),
				PaymentNo:     newReference("PMT"),
				Status:        models.PaymentInitiated,
				BankMandateID: mandateID,
				PayoutMode:    models.PayoutCheque,
			}
			if mandateID != nil {
				payment.PayoutMode = models.PayoutBankTransfer
			}
			if err := tx.Create(&payment).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		s.events.Record(declarationID, models.EventPaymentsGenerated, actorID,
			fmt.Sprintf("%d payments generated", created))
	}
	return created, nil
}

// activeMandateID returns the shareholder's active bank mandate id, or nil
// when none exists and the payout falls back to cheque.
func activeMandateID(tx *gorm.DB, shareholderID string) (*string, error) {
	var mandate models.BankMandate
	err := tx.Where("shareholder_id = ? AND status = ?", shareholderID, models.MandateActive).
		Order("created_at DESC").
		First(&mandate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &mandate.ID, nil
}

// ListPayments returns the payments of a declaration's authoritative frozen
// run in deterministic account order.
func (s *paymentService) ListPayments(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.Payment], error) {
	if _, err := loadDeclaration(s.db, declarationID); err != nil {
		return nil, err
	}
	run, err := authoritativeRun(s.db, declarationID)
	if err != nil {
		return nil, err
	}

	page.Defaults()
	base := s.db.Model(&models.Payment{}).
		Joins("JOIN entitlements ON entitlements.id = payments.entitlement_id AND entitlements.deleted_at IS NULL").
		Where("entitlements.entitlement_run_id = ?", run.ID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var payments []models.Payment
	if err := base.Order("entitlements.register_account_id, entitlements.share_class_id, payments.created_at").
		Scopes(pagination.Paginate(page)).
		Preload("Entitlement").
		Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(payments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// paymentTransitionAllowed encodes the payment status machine: initiated
// settles to paid or failed, and a settled paid payment can still be
// disputed. Everything else, including any move out of reissued, is refused.
func paymentTransitionAllowed(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentInitiated:
		return to == models.PaymentPaid || to == models.PaymentFailed
	case models.PaymentPaid:
		return to == models.PaymentDisputed
	default:
		return false
	}
}

// UpdatePaymentStatus applies one settlement transition to a payment.
func (s *paymentService) UpdatePaymentStatus(paymentID string, target models.PaymentStatus, reason, actorID string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment = &models.Payment{}
		if err := database.LockForUpdate(tx).First(payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPaymentNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !paymentTransitionAllowed(payment.Status, target) {
			return apperrors.WithMessage(apperrors.ErrInvalidPaymentStatus,
				fmt.Sprintf("payment cannot move from %s to %s", payment.Status, target))
		}
		if (target == models.PaymentFailed || target == models.PaymentDisputed) && reason == "" {
			return apperrors.WithMessage(apperrors.ErrReasonRequired,
				fmt.Sprintf("a reason is required to mark a payment %s", target))
		}

		payment.Status = target
		if target == models.PaymentFailed || target == models.PaymentDisputed {
			payment.FailureReason = reason
		}
		if err := tx.Save(payment).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ReissuePayment replaces a failed or disputed payment with a fresh initiated
// one carrying new references, atomically marking the original reissued. The
// replacement points back at the original via reissued_from_id, so the full
// lineage of a payout stays reconstructable.
func (s *paymentService) ReissuePayment(paymentID, reason, actorID string) (*ReissueResult, error) {
	if reason == "" {
		return nil, apperrors.WithMessage(apperrors.ErrReasonRequired, "a reissue reason is required")
	}

	var result *ReissueResult
	var declarationID string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var original models.Payment
		if err := database.LockForUpdate(tx).First(&original, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPaymentNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !original.CanBeReissued() {
			return apperrors.ErrPaymentNotReissuable
		}

		decl, _, err := declarationOfEntitlement(tx, original.EntitlementID)
		if err != nil {
			return err
		}
		if !decl.IsLive() {
			return apperrors.ErrDeclarationNotLive
		}
		declarationID = decl.ID

		replacement := models.Payment{
			EntitlementID:  original.EntitlementID,
			Reference:      newReference("PAY"),
			PaymentNo:      newReference("PMT"),
			PayoutMode:     original.PayoutMode,
			BankMandateID:  original.BankMandateID,
			Status:         models.PaymentInitiated,
			ReissuedFromID: &original.ID,
			ReissueReason:  reason,
		}
		if err := tx.Create(&replacement).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		original.Status = models.PaymentReissued
		original.ReissueReason = reason
		if err := tx.Save(&original).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		result = &ReissueResult{Original: &original, Replacement: &replacement}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Record(declarationID, models.EventPaymentReissued, actorID,
		fmt.Sprintf("payment %s reissued as %s: %s", result.Original.PaymentNo, result.Replacement.PaymentNo, reason))
	return result, nil
}

// declarationOfEntitlement resolves an entitlement back to its declaration
// through the run header.
func declarationOfEntitlement(tx *gorm.DB, entitlementID string) (*models.Declaration, *models.EntitlementRun, error) {
	var ent models.Entitlement
	if err := tx.First(&ent, "id = ?", entitlementID).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var run models.EntitlementRun
	if err := tx.First(&run, "id = ?", ent.EntitlementRunID).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	decl, err := lockDeclaration(tx, run.DeclarationID)
	if err != nil {
		return nil, nil, err
	}
	return decl, &run, nil
}
