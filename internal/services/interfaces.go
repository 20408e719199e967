package services

import (
	"io"
	"time"

	"github.com/shopspring/decimal"

	"registra/internal/models"
	"registra/internal/pagination"
)

// Actor is the authenticated caller as resolved by the identity provider:
// an opaque id plus the role codes the provider granted. The workflow engine
// never queries a permission graph itself; it works from this resolved set
// (plus any delegations recorded for the declaration).
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports whether the actor directly holds the given role code.
func (a Actor) HasRole(code string) bool {
	for _, r := range a.Roles {
		if r == code {
			return true
		}
	}
	return false
}

// CreateDeclarationInput carries the fields accepted when drafting a declaration.
type CreateDeclarationInput struct {
	CompanyID                string
	RegisterID               string
	SupplementaryOfID        *string
	PeriodLabel              string
	RatePerShare             decimal.Decimal
	RecordDate               *time.Time
	PaymentDate              *time.Time
	AnnouncementDate         *time.Time
	ExcludeCautionAccounts   bool
	RequireActiveBankMandate bool
}

// UpdateDeclarationInput carries the optional fields of a DRAFT update;
// nil fields are left unchanged.
type UpdateDeclarationInput struct {
	PeriodLabel              *string
	RatePerShare             *decimal.Decimal
	RecordDate               *time.Time
	PaymentDate              *time.Time
	AnnouncementDate         *time.Time
	ExcludeCautionAccounts   *bool
	RequireActiveBankMandate *bool
}

// DeclarationServicer defines the contract for declaration lifecycle CRUD.
// Only DRAFT declarations may be updated or deleted; everything after
// submission is driven by the workflow engine.
type DeclarationServicer interface {
	CreateDeclaration(actorID string, input CreateDeclarationInput) (*models.Declaration, error)
	GetDeclaration(declarationID string) (*models.Declaration, error)
	ListDeclarations(companyID string, status *models.DeclarationStatus, page pagination.PageRequest) (*pagination.PageResponse[models.Declaration], error)
	UpdateDeclaration(declarationID, actorID string, input UpdateDeclarationInput) (*models.Declaration, error)
	DeleteDeclaration(declarationID, actorID string) error
}

// EntitlementLine is one computed per-account, per-share-class payout line.
type EntitlementLine struct {
	RegisterAccountID   string                     `json:"register_account_id"`
	AccountNo           string                     `json:"account_no"`
	ShareholderID       string                     `json:"shareholder_id"`
	ShareholderName     string                     `json:"shareholder_name"`
	ShareClassID        string                     `json:"share_class_id"`
	ShareClassCode      string                     `json:"share_class_code"`
	EligibleShares      decimal.Decimal            `json:"eligible_shares"`
	GrossAmount         decimal.Decimal            `json:"gross_amount"`
	TaxAmount           decimal.Decimal            `json:"tax_amount"`
	NetAmount           decimal.Decimal            `json:"net_amount"`
	IsPayable           bool                       `json:"is_payable"`
	IneligibilityReason models.IneligibilityReason `json:"ineligibility_reason"`
}

// PageTotals are the decimal sums across one page of emitted lines.
type PageTotals struct {
	Shares    decimal.Decimal `json:"shares"`
	Gross     decimal.Decimal `json:"gross"`
	Tax       decimal.Decimal `json:"tax"`
	Net       decimal.Decimal `json:"net"`
	LineCount int             `json:"line_count"`
}

// ClassSubtotal is the per-share-class slice of the grand totals.
type ClassSubtotal struct {
	Shares    decimal.Decimal `json:"shares"`
	Gross     decimal.Decimal `json:"gross"`
	Tax       decimal.Decimal `json:"tax"`
	Net       decimal.Decimal `json:"net"`
	LineCount int             `json:"line_count"`
}

// GrandTotals aggregates the entire eligible population of a declaration.
type GrandTotals struct {
	TotalShares               decimal.Decimal          `json:"total_shares"`
	TotalGross                decimal.Decimal          `json:"total_gross"`
	TotalTax                  decimal.Decimal          `json:"total_tax"`
	TotalNet                  decimal.Decimal          `json:"total_net"`
	PayableCount              int                      `json:"payable_count"`
	PayableNet                decimal.Decimal          `json:"payable_net"`
	NonPayableCount           int                      `json:"non_payable_count"`
	NonPayableNet             decimal.Decimal          `json:"non_payable_net"`
	EligibleShareholdersCount int                      `json:"eligible_shareholders_count"`
	RoundingResidue           decimal.Decimal          `json:"rounding_residue"`
	ByClass                   map[string]ClassSubtotal `json:"by_class"`
	LineCount                 int64                    `json:"line_count"`
}

// EntitlementPreview is the read-only result of a preview computation.
type EntitlementPreview struct {
	LineItems   []EntitlementLine `json:"line_items"`
	PageTotals  PageTotals        `json:"page_totals"`
	GrandTotals GrandTotals       `json:"grand_totals"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
	TotalItems  int64             `json:"total_items"`
	TotalPages  int               `json:"total_pages"`
}

// EntitlementComputer defines the read-only entitlement computation over
// live share positions. Calls are side-effect free and repeatable; results
// change only when the underlying positions change.
type EntitlementComputer interface {
	PreviewEntitlements(declarationID string, page pagination.PageRequest) (*EntitlementPreview, error)
	ComputeGrandTotals(declarationID string) (*GrandTotals, error)
}

// EntitlementRunManager owns the PREVIEW/FROZEN run lifecycle and the
// authoritative-run selection invariant.
type EntitlementRunManager interface {
	FreezeEntitlements(declarationID, actorID string) (*models.EntitlementRun, error)
	RecordPreviewRun(declarationID, actorID string) (*models.EntitlementRun, error)
	AuthoritativeRun(declarationID string) (*models.EntitlementRun, error)
	ListRuns(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.EntitlementRun], error)
	ListFrozenEntitlements(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.Entitlement], error)
}

// WorkflowEngine drives the declaration status state machine.
type WorkflowEngine interface {
	Submit(declarationID, actorID string) (*models.Declaration, error)
	RecordDecision(declarationID string, actor Actor, roleCode string, decision models.ApprovalDecision, comment string) (*models.Declaration, error)
	GoLive(declarationID, actorID string) (*models.Declaration, error)
	Archive(declarationID, actorID string) (*models.Declaration, error)
	CreateDelegation(declarationID, roleCode, relieverUserID, assignedBy string) (*models.ApprovalDelegation, error)
	RevokeDelegation(declarationID, delegationID, actorID string) error
	ListDelegations(declarationID string) ([]models.ApprovalDelegation, error)
	ListActions(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.ApprovalAction], error)
}

// ReissueResult pairs the superseded payment with its replacement.
type ReissueResult struct {
	Original    *models.Payment `json:"original"`
	Replacement *models.Payment `json:"replacement"`
}

// PaymentServicer defines payment generation, status transitions, and reissue.
type PaymentServicer interface {
	GeneratePayments(declarationID, actorID string) (int, error)
	ListPayments(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.Payment], error)
	UpdatePaymentStatus(paymentID string, target models.PaymentStatus, reason, actorID string) (*models.Payment, error)
	ReissuePayment(paymentID, reason, actorID string) (*ReissueResult, error)
}

// ExportServicer renders the authoritative frozen run of a live declaration.
type ExportServicer interface {
	ExportCSV(declarationID, actorID string, w io.Writer) (string, error)
}

// EventRecorder appends and lists workflow audit events. Recording never
// fails the surrounding operation; it is called only after the transition
// transaction has committed.
type EventRecorder interface {
	Record(declarationID, eventType, actorID, note string)
	ListEvents(declarationID string, page pagination.PageRequest) (*pagination.PageResponse[models.WorkflowEvent], error)
}
