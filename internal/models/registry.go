package models

import "github.com/shopspring/decimal"

// Company is the issuing company a register belongs to. Company records are
// maintained by the registry administration system; this service only reads
// them.
type Company struct {
	Base
	Name           string `gorm:"not null" json:"name"`
	RegistrationNo string `gorm:"uniqueIndex;not null" json:"registration_no"`

	Registers []Register `gorm:"foreignKey:CompanyID" json:"registers,omitempty"`
}

// Register is a share register kept for a company.
type Register struct {
	Base
	CompanyID string `gorm:"type:uuid;not null;index" json:"company_id"`
	Name      string `gorm:"not null" json:"name"`

	Company      Company      `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	ShareClasses []ShareClass `gorm:"foreignKey:RegisterID" json:"share_classes,omitempty"`
}

// ShareClass is a class of shares on a register. The withholding tax rate is
// a percentage between 0 and 100 applied to gross dividend amounts.
type ShareClass struct {
	Base
	RegisterID         string          `gorm:"type:uuid;not null;index" json:"register_id"`
	Code               string          `gorm:"not null" json:"code"`
	Currency           string          `gorm:"size:3;not null" json:"currency"`
	ParValue           decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"par_value"`
	WithholdingTaxRate decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"withholding_tax_rate"`
}

// ShareholderStatus represents the processing status of a shareholder.
type ShareholderStatus string

const (
	ShareholderActive   ShareholderStatus = "active"
	ShareholderCaution  ShareholderStatus = "caution"
	ShareholderDeceased ShareholderStatus = "deceased"
)

// Shareholder is a person or institution on one or more registers.
type Shareholder struct {
	Base
	FullName string            `gorm:"not null" json:"full_name"`
	Status   ShareholderStatus `gorm:"not null;default:'active'" json:"status"`
	Email    string            `json:"email,omitempty"`

	BankMandates []BankMandate `gorm:"foreignKey:ShareholderID" json:"bank_mandates,omitempty"`
}

// BankMandateStatus represents whether a mandate may receive payments.
type BankMandateStatus string

const (
	MandateActive  BankMandateStatus = "active"
	MandateRevoked BankMandateStatus = "revoked"
)

// BankMandate is a shareholder's payment instruction. Only active mandates
// make a shareholder payable when a declaration requires one.
type BankMandate struct {
	Base
	ShareholderID string            `gorm:"type:uuid;not null;index" json:"shareholder_id"`
	BankName      string            `gorm:"not null" json:"bank_name"`
	AccountNumber string            `gorm:"not null" json:"account_number"`
	Status        BankMandateStatus `gorm:"not null;default:'active'" json:"status"`
}

// RegisterAccountStatus gates an account's eligibility for corporate actions.
type RegisterAccountStatus string

const (
	AccountActive    RegisterAccountStatus = "active"
	AccountSuspended RegisterAccountStatus = "suspended"
	AccountClosed    RegisterAccountStatus = "closed"
)

// RegisterAccount (SRA) is a shareholder's holding account within one
// register. Only active accounts enter dividend computations.
type RegisterAccount struct {
	Base
	ShareholderID string                `gorm:"type:uuid;not null;index" json:"shareholder_id"`
	RegisterID    string                `gorm:"type:uuid;not null;index" json:"register_id"`
	AccountNo     string                `gorm:"uniqueIndex;not null" json:"account_no"`
	Status        RegisterAccountStatus `gorm:"not null;default:'active'" json:"status"`

	Shareholder Shareholder `gorm:"foreignKey:ShareholderID" json:"shareholder,omitempty"`
}

// SharePosition is the current holding of one account in one share class.
// Quantity is the sole eligibility-shares source at computation time; the
// register does not keep historical balances as of record date.
type SharePosition struct {
	Base
	RegisterAccountID string          `gorm:"type:uuid;not null;uniqueIndex:idx_position_account_class" json:"register_account_id"`
	ShareClassID      string          `gorm:"type:uuid;not null;uniqueIndex:idx_position_account_class" json:"share_class_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(26,6);not null" json:"quantity"`

	RegisterAccount RegisterAccount `gorm:"foreignKey:RegisterAccountID" json:"register_account,omitempty"`
	ShareClass      ShareClass      `gorm:"foreignKey:ShareClassID" json:"share_class,omitempty"`
}
