package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeclarationStatus is the workflow status of a dividend declaration.
//
// A VERIFIED status existed historically between SUBMITTED and APPROVED; it
// was permanently bypassed and is not part of the transition logic. The
// verified_by/verified_at columns are kept in the schema for data
// compatibility but are never written.
type DeclarationStatus string

const (
	DeclarationDraft       DeclarationStatus = "DRAFT"
	DeclarationSubmitted   DeclarationStatus = "SUBMITTED"
	DeclarationQueryRaised DeclarationStatus = "QUERY_RAISED"
	DeclarationApproved    DeclarationStatus = "APPROVED"
	DeclarationLive        DeclarationStatus = "LIVE"
	DeclarationRejected    DeclarationStatus = "REJECTED"
	DeclarationArchived    DeclarationStatus = "ARCHIVED"
)

// Declaration is a dividend declaration header. Aggregate totals are unset
// until a FROZEN entitlement run completes, at which point they are copied
// from the run for fast reads.
type Declaration struct {
	Base
	CompanyID                  string            `gorm:"type:uuid;not null;uniqueIndex:idx_declaration_period" json:"company_id"`
	RegisterID                 string            `gorm:"type:uuid;not null;index" json:"register_id"`
	SupplementaryOfID          *string           `gorm:"type:uuid" json:"supplementary_of_declaration_id,omitempty"`
	PeriodLabel                string            `gorm:"not null;uniqueIndex:idx_declaration_period" json:"period_label"`
	DeclarationNo              string            `gorm:"uniqueIndex;not null" json:"declaration_no"`
	RatePerShare               decimal.Decimal   `gorm:"type:decimal(20,6);not null;default:0" json:"rate_per_share"`
	RecordDate                 *time.Time        `json:"record_date,omitempty"`
	PaymentDate                *time.Time        `json:"payment_date,omitempty"`
	AnnouncementDate           *time.Time        `json:"announcement_date,omitempty"`
	ExcludeCautionAccounts     bool              `gorm:"not null;default:false" json:"exclude_caution_accounts"`
	RequireActiveBankMandate   bool              `gorm:"not null;default:false" json:"require_active_bank_mandate"`
	Status                     DeclarationStatus `gorm:"not null;default:'DRAFT';index" json:"status"`
	CurrentApprovalStep        *int              `json:"current_approval_step,omitempty"`
	IsFrozen                   bool              `gorm:"not null;default:false" json:"is_frozen"`
	TotalGrossAmount           decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_gross_amount,omitempty"`
	TotalTaxAmount             decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_tax_amount,omitempty"`
	TotalNetAmount             decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_net_amount,omitempty"`
	RoundingResidue            decimal.NullDecimal `gorm:"type:decimal(26,6)" json:"rounding_residue,omitempty"`
	EligibleShareholdersCount  *int              `json:"eligible_shareholders_count,omitempty"`
	RejectionReason            string            `json:"rejection_reason,omitempty"`
	ArchivedFromStatus         string            `json:"archived_from_status,omitempty"`

	CreatedBy   string     `gorm:"type:uuid;not null" json:"created_by"`
	SubmittedBy *string    `gorm:"type:uuid" json:"submitted_by,omitempty"`
	ApprovedBy  *string    `gorm:"type:uuid" json:"approved_by,omitempty"`
	RejectedBy  *string    `gorm:"type:uuid" json:"rejected_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	LiveAt      *time.Time `json:"live_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`

	Runs    []EntitlementRun `gorm:"foreignKey:DeclarationID;constraint:OnDelete:CASCADE" json:"runs,omitempty"`
	Actions []ApprovalAction `gorm:"foreignKey:DeclarationID;constraint:OnDelete:CASCADE" json:"actions,omitempty"`
}

// CanBeEdited reports whether the declaration may still be modified.
// Only DRAFT declarations are editable.
func (d *Declaration) CanBeEdited() bool {
	return d.Status == DeclarationDraft
}

// CanBeDeleted reports whether the declaration may be deleted.
func (d *Declaration) CanBeDeleted() bool {
	return d.Status == DeclarationDraft
}

// IsLive reports whether the declaration is live. Exports, payment generation
// and reissue all gate on this.
func (d *Declaration) IsLive() bool {
	return d.Status == DeclarationLive
}

// HasComputationInputs reports whether the rate and record date required for
// entitlement computation are present.
func (d *Declaration) HasComputationInputs() bool {
	return d.RatePerShare.IsPositive() && d.RecordDate != nil
}
