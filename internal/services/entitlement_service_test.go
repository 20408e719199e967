package services

import (
	"testing"

	"registra/internal/models"
	"registra/internal/pagination"
	"registra/internal/testutil"
)

func TestPreviewEntitlements(t *testing.T) {
	t.Run("computes_lines_and_totals", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "10")
		holder := testutil.CreateTestShareholder(t, db)
		account := testutil.CreateTestRegisterAccount(t, db, holder.ID, register.ID)
		testutil.CreateTestPosition(t, db, account.ID, class.ID, "100000")
		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.25")

		preview, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if len(preview.LineItems) != 1 {
			t.Fatalf("expected 1 line, got %d", len(preview.LineItems))
		}
		line := preview.LineItems[0]
		testutil.AssertDecimalEqual(t, "gross", "125000", line.GrossAmount)
		testutil.AssertDecimalEqual(t, "tax", "12500", line.TaxAmount)
		testutil.AssertDecimalEqual(t, "net", "112500", line.NetAmount)
		if !line.IsPayable {
			t.Error("expected line to be payable")
		}
		testutil.AssertDecimalEqual(t, "grand gross", "125000", preview.GrandTotals.TotalGross)
		if preview.GrandTotals.EligibleShareholdersCount != 1 {
			t.Errorf("expected 1 eligible shareholder, got %d", preview.GrandTotals.EligibleShareholdersCount)
		}
		if preview.TotalItems != 1 {
			t.Errorf("expected 1 total item, got %d", preview.TotalItems)
		}
	})

	t.Run("excludes_caution_accounts_when_flagged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "10")

		normal := testutil.CreateTestShareholder(t, db)
		normalAcct := testutil.CreateTestRegisterAccount(t, db, normal.ID, register.ID)
		testutil.CreateTestPosition(t, db, normalAcct.ID, class.ID, "1000")

		caution := testutil.CreateTestShareholderWithStatus(t, db, models.ShareholderCaution)
		cautionAcct := testutil.CreateTestRegisterAccount(t, db, caution.ID, register.ID)
		testutil.CreateTestPosition(t, db, cautionAcct.ID, class.ID, "2000")

		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.00")
		decl.ExcludeCautionAccounts = true
		testutil.AssertNoError(t, db.Save(decl).Error)

		preview, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if len(preview.LineItems) != 1 {
			t.Fatalf("expected caution account to be excluded, got %d lines", len(preview.LineItems))
		}
		if preview.LineItems[0].RegisterAccountID != normalAcct.ID {
			t.Errorf("expected the non-caution account, got %s", preview.LineItems[0].RegisterAccountID)
		}
		testutil.AssertDecimalEqual(t, "grand shares", "1000", preview.GrandTotals.TotalShares)
	})

	t.Run("missing_mandate_stays_as_non_payable_line", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "0")

		withMandate := testutil.CreateTestShareholder(t, db)
		testutil.CreateTestBankMandate(t, db, withMandate.ID)
		acct1 := testutil.CreateTestRegisterAccount(t, db, withMandate.ID, register.ID)
		testutil.CreateTestPosition(t, db, acct1.ID, class.ID, "100")

		noMandate := testutil.CreateTestShareholder(t, db)
		acct2 := testutil.CreateTestRegisterAccount(t, db, noMandate.ID, register.ID)
		testutil.CreateTestPosition(t, db, acct2.ID, class.ID, "200")

		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.00")
		decl.RequireActiveBankMandate = true
		testutil.AssertNoError(t, db.Save(decl).Error)

		preview, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if len(preview.LineItems) != 2 {
			t.Fatalf("expected both lines to be computed, got %d", len(preview.LineItems))
		}
		byAccount := map[string]EntitlementLine{}
		for _, line := range preview.LineItems {
			byAccount[line.RegisterAccountID] = line
		}
		if !byAccount[acct1.ID].IsPayable {
			t.Error("expected mandate holder's line to be payable")
		}
		missing := byAccount[acct2.ID]
		if missing.IsPayable {
			t.Error("expected line without mandate to be non-payable")
		}
		if missing.IneligibilityReason != models.ReasonNoActiveMandate {
			t.Errorf("expected reason NO_ACTIVE_BANK_MANDATE, got %s", missing.IneligibilityReason)
		}
		if preview.GrandTotals.PayableCount != 1 || preview.GrandTotals.NonPayableCount != 1 {
			t.Errorf("expected 1 payable and 1 non-payable, got %d and %d",
				preview.GrandTotals.PayableCount, preview.GrandTotals.NonPayableCount)
		}
	})

	t.Run("page_totals_sum_the_page_lines", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "5")
		for i := 0; i < 5; i++ {
			holder := testutil.CreateTestShareholder(t, db)
			acct := testutil.CreateTestRegisterAccount(t, db, holder.ID, register.ID)
			testutil.CreateTestPosition(t, db, acct.ID, class.ID, "100")
		}
		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "2.00")

		preview, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{Page: 1, PageSize: 2})
		testutil.AssertNoError(t, err)

		if len(preview.LineItems) != 2 {
			t.Fatalf("expected 2 lines on the page, got %d", len(preview.LineItems))
		}
		testutil.AssertDecimalEqual(t, "page gross", "400", preview.PageTotals.Gross)
		testutil.AssertDecimalEqual(t, "grand gross", "1000", preview.GrandTotals.TotalGross)
		if preview.TotalPages != 3 {
			t.Errorf("expected 3 pages, got %d", preview.TotalPages)
		}
	})

	t.Run("repeatable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "10")
		holder := testutil.CreateTestShareholder(t, db)
		acct := testutil.CreateTestRegisterAccount(t, db, holder.ID, register.ID)
		testutil.CreateTestPosition(t, db, acct.ID, class.ID, "100")
		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.00")

		first, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		second, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if !first.GrandTotals.TotalGross.Equal(second.GrandTotals.TotalGross) {
			t.Errorf("expected identical totals, got %s and %s",
				first.GrandTotals.TotalGross, second.GrandTotals.TotalGross)
		}
		var runs int64
		testutil.AssertNoError(t, db.Model(&models.EntitlementRun{}).Count(&runs).Error)
		if runs != 0 {
			t.Errorf("expected preview to persist nothing, found %d runs", runs)
		}
	})

	t.Run("rate_not_set", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "0")

		_, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertAppError(t, err, "RATE_PER_SHARE_NOT_SET")
	})

	t.Run("record_date_not_set", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.00")
		testutil.AssertNoError(t, db.Model(decl).Update("record_date", nil).Error)

		_, err := svc.PreviewEntitlements(decl.ID, pagination.PageRequest{})
		testutil.AssertAppError(t, err, "RECORD_DATE_NOT_SET")
	})

	t.Run("declaration_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		_, err := svc.PreviewEntitlements(testutil.NewActorID(), pagination.PageRequest{})
		testutil.AssertAppError(t, err, "DECLARATION_NOT_FOUND")
	})
}

func TestComputeGrandTotals(t *testing.T) {
	t.Run("skips_inactive_and_empty_positions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		class := testutil.CreateTestShareClass(t, db, register.ID, "10")

		active := testutil.CreateTestShareholder(t, db)
		activeAcct := testutil.CreateTestRegisterAccount(t, db, active.ID, register.ID)
		testutil.CreateTestPosition(t, db, activeAcct.ID, class.ID, "500")

		suspended := testutil.CreateTestShareholder(t, db)
		suspendedAcct := testutil.CreateTestRegisterAccount(t, db, suspended.ID, register.ID)
		suspendedAcct.Status = models.AccountSuspended
		testutil.AssertNoError(t, db.Save(suspendedAcct).Error)
		testutil.CreateTestPosition(t, db, suspendedAcct.ID, class.ID, "999")

		zero := testutil.CreateTestShareholder(t, db)
		zeroAcct := testutil.CreateTestRegisterAccount(t, db, zero.ID, register.ID)
		testutil.CreateTestPosition(t, db, zeroAcct.ID, class.ID, "0")

		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "1.00")

		totals, err := svc.ComputeGrandTotals(decl.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimalEqual(t, "total shares", "500", totals.TotalShares)
		if totals.LineCount != 1 {
			t.Errorf("expected 1 line, got %d", totals.LineCount)
		}
	})

	t.Run("per_class_subtotals", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEntitlementService(db)

		company := testutil.CreateTestCompany(t, db)
		register := testutil.CreateTestRegister(t, db, company.ID)
		ordinary := testutil.CreateTestShareClass(t, db, register.ID, "10")
		preferred := testutil.CreateTestShareClass(t, db, register.ID, "0")

		holder := testutil.CreateTestShareholder(t, db)
		acct := testutil.CreateTestRegisterAccount(t, db, holder.ID, register.ID)
		testutil.CreateTestPosition(t, db, acct.ID, ordinary.ID, "100")
		testutil.CreateTestPosition(t, db, acct.ID, preferred.ID, "50")

		decl := testutil.CreateTestDeclaration(t, db, company.ID, register.ID, "2.00")

		totals, err := svc.ComputeGrandTotals(decl.ID)
		testutil.AssertNoError(t, err)

		if len(totals.ByClass) != 2 {
			t.Fatalf("expected 2 class subtotals, got %d", len(totals.ByClass))
		}
		testutil.AssertDecimalEqual(t, "ordinary gross", "200", totals.ByClass[ordinary.Code].Gross)
		testutil.AssertDecimalEqual(t, "preferred gross", "100", totals.ByClass[preferred.Code].Gross)
		// One shareholder holding two classes counts once.
		if totals.EligibleShareholdersCount != 1 {
			t.Errorf("expected 1 eligible shareholder, got %d", totals.EligibleShareholdersCount)
		}
		if totals.LineCount != 2 {
			t.Errorf("expected 2 lines, got %d", totals.LineCount)
		}
	})
}
