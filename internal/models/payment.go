package models

// PaymentStatus is the lifecycle status of a dividend payment.
// reissued is terminal: a reissued payment can never be reissued again, only
// its replacement can, which keeps the lineage chain forward-only.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentReissued  PaymentStatus = "reissued"
)

// PayoutMode is the channel a payment is made through.
type PayoutMode string

const (
	PayoutBankTransfer PayoutMode = "bank_transfer"
	PayoutCheque       PayoutMode = "cheque"
)

// Payment is a payout against one entitlement of a frozen run. Replacement
// payments point back at the payment they replace via reissued_from_id.
type Payment struct {
	Base
	EntitlementID string        `gorm:"type:uuid;not null;index" json:"entitlement_id"`
	Reference     string        `gorm:"uniqueIndex;not null" json:"reference"`
	PaymentNo     string        `gorm:"uniqueIndex;not null" json:"payment_no"`
	PayoutMode    PayoutMode    `gorm:"not null;default:'bank_transfer'" json:"payout_mode"`
	BankMandateID *string       `gorm:"type:uuid" json:"bank_mandate_id,omitempty"`
	Status        PaymentStatus `gorm:"not null;default:'initiated';index" json:"status"`
	ReissuedFromID *string      `gorm:"type:uuid" json:"reissued_from_id,omitempty"`
	ReissueReason  string       `json:"reissue_reason,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`

	Entitlement  Entitlement `gorm:"foreignKey:EntitlementID" json:"entitlement,omitempty"`
	ReissuedFrom *Payment    `gorm:"foreignKey:ReissuedFromID" json:"reissued_from,omitempty"`
}

// CanBeReissued reports whether the payment is in a reissuable status.
func (p *Payment) CanBeReissued() bool {
	return p.Status == PaymentFailed || p.Status == PaymentDisputed
}
