package models

import "time"

// ApprovalStep configures one role requirement at one step of a company's
// approval sequence. A step may carry several role codes; all of them must
// record an APPROVED decision before the step advances.
type ApprovalStep struct {
	Base
	CompanyID string `gorm:"type:uuid;not null;uniqueIndex:idx_step_company_no_role" json:"company_id"`
	StepNo    int    `gorm:"not null;uniqueIndex:idx_step_company_no_role" json:"step_no"`
	RoleCode  string `gorm:"not null;uniqueIndex:idx_step_company_no_role" json:"role_code"`
}

// ApprovalDecision is the outcome an approver records at a step.
type ApprovalDecision string

const (
	DecisionApproved    ApprovalDecision = "APPROVED"
	DecisionRejected    ApprovalDecision = "REJECTED"
	DecisionQueryRaised ApprovalDecision = "QUERY_RAISED"
)

// ApprovalAction is the append-only record of one approval decision.
type ApprovalAction struct {
	Base
	DeclarationID string           `gorm:"type:uuid;not null;index" json:"declaration_id"`
	StepNo        int              `gorm:"not null" json:"step_no"`
	RoleCode      string           `gorm:"not null" json:"role_code"`
	Decision      ApprovalDecision `gorm:"not null" json:"decision"`
	ActorID       string           `gorm:"type:uuid;not null" json:"actor_id"`
	Comment       string           `json:"comment,omitempty"`
	ActedAt       time.Time        `gorm:"not null" json:"acted_at"`
}

// ApprovalDelegation grants a reliever temporary authority to act for a role
// on one declaration. An action by the reliever satisfies the role's
// requirement exactly as an action by a direct role holder would.
type ApprovalDelegation struct {
	Base
	DeclarationID  string `gorm:"type:uuid;not null;uniqueIndex:idx_delegation_decl_role_reliever" json:"declaration_id"`
	RoleCode       string `gorm:"not null;uniqueIndex:idx_delegation_decl_role_reliever" json:"role_code"`
	RelieverUserID string `gorm:"type:uuid;not null;uniqueIndex:idx_delegation_decl_role_reliever" json:"reliever_user_id"`
	AssignedBy     string `gorm:"type:uuid;not null" json:"assigned_by"`
}

// Workflow event types. One event is appended for every transition that
// commits; failed attempts leave no event.
const (
	EventCreated            = "CREATED"
	EventSubmitted          = "SUBMITTED"
	EventStepApproved       = "STEP_APPROVED"
	EventApproved           = "APPROVED"
	EventQueryRaised        = "QUERY_RAISED"
	EventRejected           = "REJECTED"
	EventGoLive             = "GO_LIVE"
	EventArchived           = "ARCHIVED"
	EventPreviewRun         = "PREVIEW_RUN_RECORDED"
	EventEntitlementsFrozen = "ENTITLEMENTS_FROZEN"
	EventPaymentsGenerated  = "PAYMENTS_GENERATED"
	EventPaymentReissued    = "PAYMENT_REISSUED"
	EventExportedCSV        = "EXPORTED_CSV"
	EventDelegationAssigned = "DELEGATION_ASSIGNED"
	EventDelegationRevoked  = "DELEGATION_REVOKED"
)

// WorkflowEvent is one entry of a declaration's audit trail. Events are
// append-only; they are never mutated or deleted.
type WorkflowEvent struct {
	Base
	DeclarationID string `gorm:"type:uuid;not null;index" json:"declaration_id"`
	EventType     string `gorm:"not null" json:"event_type"`
	ActorID       string `gorm:"type:uuid;not null" json:"actor_id"`
	Note          string `json:"note,omitempty"`
}
