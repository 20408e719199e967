package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"registra/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestCompany creates a company with a unique registration number.
func CreateTestCompany(t *testing.T, db *gorm.DB) *models.Company {
	t.Helper()

	company := &models.Company{
		Name:           fmt.Sprintf("Test Company %d", nextID()),
		RegistrationNo: fmt.Sprintf("RC%06d", nextID()),
	}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}
	return company
}

// CreateTestRegister creates a register for the company.
func CreateTestRegister(t *testing.T, db *gorm.DB, companyID string) *models.Register {
	t.Helper()

	register := &models.Register{
		CompanyID: companyID,
		Name:      fmt.Sprintf("Test Register %d", nextID()),
	}
	if err := db.Create(register).Error; err != nil {
		t.Fatalf("failed to create test register: %v", err)
	}
	return register
}

// CreateTestShareClass creates a share class with the given withholding tax
// rate expressed as a percentage string, e.g. "10" for 10%.
func CreateTestShareClass(t *testing.T, db *gorm.DB, registerID, taxRate string) *models.ShareClass {
	t.Helper()

	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		t.Fatalf("invalid tax rate %q: %v", taxRate, err)
	}
	class := &models.ShareClass{
		RegisterID:         registerID,
		Code:               fmt.Sprintf("ORD%d", nextID()),
		Currency:           "NGN",
		ParValue:           decimal.NewFromFloat(0.5),
		WithholdingTaxRate: rate,
	}
	if err := db.Create(class).Error; err != nil {
		t.Fatalf("failed to create test share class: %v", err)
	}
	return class
}

// CreateTestShareholder creates an active shareholder.
func CreateTestShareholder(t *testing.T, db *gorm.DB) *models.Shareholder {
	t.Helper()
	return CreateTestShareholderWithStatus(t, db, models.ShareholderActive)
}

// CreateTestShareholderWithStatus creates a shareholder with the given status.
func CreateTestShareholderWithStatus(t *testing.T, db *gorm.DB, status models.ShareholderStatus) *models.Shareholder {
	t.Helper()

	shareholder := &models.Shareholder{
		FullName: fmt.Sprintf("Test Shareholder %d", nextID()),
		Status:   status,
		Email:    fmt.Sprintf("holder%d@test.com", nextID()),
	}
	if err := db.Create(shareholder).Error; err != nil {
		t.Fatalf("failed to create test shareholder: %v", err)
	}
	return shareholder
}

// CreateTestBankMandate creates an active bank mandate for the shareholder.
func CreateTestBankMandate(t *testing.T, db *gorm.DB, shareholderID string) *models.BankMandate {
	t.Helper()

	mandate := &models.BankMandate{
		ShareholderID: shareholderID,
		BankName:      "Test Bank",
		AccountNumber: fmt.Sprintf("%010d", nextID()),
		Status:        models.MandateActive,
	}
	if err := db.Create(mandate).Error; err != nil {
		t.Fatalf("failed to create test bank mandate: %v", err)
	}
	return mandate
}

// CreateTestRegisterAccount creates an active register account.
func CreateTestRegisterAccount(t *testing.T, db *gorm.DB, shareholderID, registerID string) *models.RegisterAccount {
	t.Helper()

	account := &models.RegisterAccount{
		ShareholderID: shareholderID,
		RegisterID:    registerID,
		AccountNo:     fmt.Sprintf("SRA%08d", nextID()),
		Status:        models.AccountActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test register account: %v", err)
	}
	return account
}

// CreateTestPosition creates a share position with the given quantity.
func CreateTestPosition(t *testing.T, db *gorm.DB, accountID, classID, quantity string) *models.SharePosition {
	t.Helper()

	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		t.Fatalf("invalid quantity %q: %v", quantity, err)
	}
	position := &models.SharePosition{
		RegisterAccountID: accountID,
		ShareClassID:      classID,
		Quantity:          qty,
	}
	if err := db.Create(position).Error; err != nil {
		t.Fatalf("failed to create test share position: %v", err)
	}
	return position
}

// CreateTestDeclaration creates a DRAFT declaration with computation inputs set.
func CreateTestDeclaration(t *testing.T, db *gorm.DB, companyID, registerID, rate string) *models.Declaration {
	t.Helper()

	r, err := decimal.NewFromString(rate)
	if err != nil {
		t.Fatalf("invalid rate %q: %v", rate, err)
	}
	recordDate := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	decl := &models.Declaration{
		CompanyID:     companyID,
		RegisterID:    registerID,
		PeriodLabel:   fmt.Sprintf("FY2026-%d", nextID()),
		DeclarationNo: fmt.Sprintf("DIV-TEST-%08d", nextID()),
		RatePerShare:  r,
		RecordDate:    &recordDate,
		Status:        models.DeclarationDraft,
		CreatedBy:     NewActorID(),
	}
	if err := db.Create(decl).Error; err != nil {
		t.Fatalf("failed to create test declaration: %v", err)
	}
	return decl
}

// CreateTestApprovalSteps configures the company's approval sequence from
// (step_no, role_code) pairs.
func CreateTestApprovalSteps(t *testing.T, db *gorm.DB, companyID string, steps map[int][]string) {
	t.Helper()

	for stepNo, roles := range steps {
		for _, role := range roles {
			step := &models.ApprovalStep{
				CompanyID: companyID,
				StepNo:    stepNo,
				RoleCode:  role,
			}
			if err := db.Create(step).Error; err != nil {
				t.Fatalf("failed to create test approval step: %v", err)
			}
		}
	}
}

// NewActorID returns a fresh UUID usable as an actor id in tests.
func NewActorID() string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", nextID())
}
