package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunType distinguishes disposable preview snapshots from the frozen runs
// that exports and payments are based on.
type RunType string

const (
	RunPreview RunType = "PREVIEW"
	RunFrozen  RunType = "FROZEN"
)

// RunStatus is the lifecycle status of an entitlement run.
// PENDING transitions to exactly one of COMPLETED or FAILED.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// EntitlementRun is a snapshot header for one entitlement computation.
// At most one COMPLETED FROZEN run is authoritative per declaration at any
// time: the latest by computed_at. Completed runs are never mutated; a
// correction produces a new run that supersedes the old one.
type EntitlementRun struct {
	Base
	DeclarationID             string              `gorm:"type:uuid;not null;index" json:"declaration_id"`
	RunType                   RunType             `gorm:"not null" json:"run_type"`
	RunStatus                 RunStatus           `gorm:"not null;default:'PENDING'" json:"run_status"`
	ComputedAt                *time.Time          `json:"computed_at,omitempty"`
	ComputedBy                string              `gorm:"type:uuid;not null" json:"computed_by"`
	TotalShares               decimal.NullDecimal `gorm:"type:decimal(26,6)" json:"total_shares,omitempty"`
	TotalGrossAmount          decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_gross_amount,omitempty"`
	TotalTaxAmount            decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_tax_amount,omitempty"`
	TotalNetAmount            decimal.NullDecimal `gorm:"type:decimal(26,2)" json:"total_net_amount,omitempty"`
	RoundingResidue           decimal.NullDecimal `gorm:"type:decimal(26,6)" json:"rounding_residue,omitempty"`
	EligibleShareholdersCount *int                `json:"eligible_shareholders_count,omitempty"`
	ErrorMessage              string              `json:"error_message,omitempty"`

	Entitlements []Entitlement `gorm:"foreignKey:EntitlementRunID;constraint:OnDelete:CASCADE" json:"entitlements,omitempty"`
}

// IneligibilityReason explains why a computed line is not payable.
type IneligibilityReason string

const (
	ReasonNone            IneligibilityReason = "NONE"
	ReasonCaution         IneligibilityReason = "CAUTION"
	ReasonNoActiveMandate IneligibilityReason = "NO_ACTIVE_BANK_MANDATE"
	ReasonOther           IneligibilityReason = "OTHER"
)

// Entitlement is one computed payout line of a frozen run: one account, one
// share class. Rows are created in bulk when a run completes and are
// immutable afterward; they are superseded by a new run, never updated.
type Entitlement struct {
	Base
	EntitlementRunID    string              `gorm:"type:uuid;not null;uniqueIndex:idx_entitlement_run_account_class" json:"entitlement_run_id"`
	RegisterAccountID   string              `gorm:"type:uuid;not null;uniqueIndex:idx_entitlement_run_account_class" json:"register_account_id"`
	ShareClassID        string              `gorm:"type:uuid;not null;uniqueIndex:idx_entitlement_run_account_class" json:"share_class_id"`
	EligibleShares      decimal.Decimal     `gorm:"type:decimal(26,6);not null" json:"eligible_shares"`
	GrossAmount         decimal.Decimal     `gorm:"type:decimal(26,2);not null" json:"gross_amount"`
	TaxAmount           decimal.Decimal     `gorm:"type:decimal(26,2);not null" json:"tax_amount"`
	NetAmount           decimal.Decimal     `gorm:"type:decimal(26,2);not null" json:"net_amount"`
	IsPayable           bool                `gorm:"not null" json:"is_payable"`
	IneligibilityReason IneligibilityReason `gorm:"not null;default:'NONE'" json:"ineligibility_reason"`

	RegisterAccount RegisterAccount `gorm:"foreignKey:RegisterAccountID" json:"register_account,omitempty"`
	ShareClass      ShareClass      `gorm:"foreignKey:ShareClassID" json:"share_class,omitempty"`
}
