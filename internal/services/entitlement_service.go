package services

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "registra/internal/errors"
	"registra/internal/models"
	"registra/internal/pagination"
)

// traversalBatchSize bounds how many position rows are held in memory while
// walking the full eligible population.
const traversalBatchSize = 1000

// entitlementService computes entitlement lines from live share positions.
// All operations are read-only and repeatable: previews can be called any
// number of times without side effects. Persisting runs is the run
// manager's job.
type entitlementService struct {
	db *gorm.DB
}

// NewEntitlementService creates a new EntitlementComputer.
func NewEntitlementService(db *gorm.DB) EntitlementComputer {
	return &entitlementService{db: db}
}

// positionRow is one joined (account, position, class, shareholder) row of
// the eligible population query.
type positionRow struct {
	RegisterAccountID  string
	AccountNo          string
	ShareholderID      string
	ShareholderName    string
	ShareClassID       string
	ShareClassCode     string
	Quantity           decimal.Decimal
	WithholdingTaxRate decimal.Decimal
	HasActiveMandate   bool
}

// eligiblePopulation builds the selection query for a declaration: active
// accounts on the declaration's register, joined to their positive positions
// in the register's share classes. When the declaration excludes caution
// accounts they are filtered out here at selection time, not marked
// ineligible later.
//
// Eligibility reads the current position quantity, not a historical balance
// as of record_date; the register keeps no dated balances.
func eligiblePopulation(db *gorm.DB, decl *models.Declaration) *gorm.DB {
	q := db.Model(&models.SharePosition{}).
		Select(`share_positions.register_account_id,
			register_accounts.account_no AS account_no,
			shareholders.id AS shareholder_id,
			shareholders.full_name AS shareholder_name,
			share_positions.share_class_id,
			share_classes.code AS share_class_code,
			share_positions.quantity,
			share_classes.withholding_tax_rate,
			EXISTS(
				SELECT 1 FROM bank_mandates
				WHERE bank_mandates.shareholder_id = shareholders.id
				AND bank_mandates.status = 'active'
				AND bank_mandates.deleted_at IS NULL
			) AS has_active_mandate`).
		Joins("JOIN register_accounts ON register_accounts.id = share_positions.register_account_id AND register_accounts.deleted_at IS NULL").
		Joins("JOIN shareholders ON shareholders.id = register_accounts.shareholder_id AND shareholders.deleted_at IS NULL").
		Joins("JOIN share_classes ON share_classes.id = share_positions.share_class_id AND share_classes.deleted_at IS NULL").
		Where("register_accounts.register_id = ?", decl.RegisterID).
		Where("register_accounts.status = ?", models.AccountActive).
		Where("share_classes.register_id = ?", decl.RegisterID).
		Where("share_positions.quantity > 0")

	if decl.ExcludeCautionAccounts {
		q = q.Where("shareholders.status <> ?", models.ShareholderCaution)
	}

	return q.Order("share_positions.register_account_id, share_positions.share_class_id")
}

// buildLine turns one population row into a computed entitlement line.
func buildLine(decl *models.Declaration, row positionRow) EntitlementLine {
	tl := ComputeTaxLine(row.Quantity, decl.RatePerShare, row.WithholdingTaxRate)
	payable, reason := EvaluatePayability(decl.RequireActiveBankMandate, row.HasActiveMandate)
	return EntitlementLine{
		RegisterAccountID:   row.RegisterAccountID,
		AccountNo:           row.AccountNo,
		ShareholderID:       row.ShareholderID,
		ShareholderName:     row.ShareholderName,
		ShareClassID:        row.ShareClassID,
		ShareClassCode:      row.ShareClassCode,
		EligibleShares:      row.Quantity.Round(SharePrecision),
		GrossAmount:         tl.Gross,
		TaxAmount:           tl.Tax,
		NetAmount:           tl.Net,
		IsPayable:           payable,
		IneligibilityReason: reason,
	}
}

// forEachLine walks the eligible population in deterministic order (by
// register account, then share class) and emits one computed line per row.
// With a window only that page is visited; with a nil window the whole
// population is streamed in batches. Page totals and grand totals both come
// through here, so the two can never drift apart.
func forEachLine(db *gorm.DB, decl *models.Declaration, window *pagination.PageRequest, visit func(EntitlementLine) error) error {
	if window != nil {
		var rows []positionRow
		if err := eligiblePopulation(db, decl).
			Offset(window.Offset()).Limit(window.PageSize).
			Scan(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, row := range rows {
			if err := visit(buildLine(decl, row)); err != nil {
				return err
			}
		}
		return nil
	}

	for offset := 0; ; offset += traversalBatchSize {
		var rows []positionRow
		if err := eligiblePopulation(db, decl).
			Offset(offset).Limit(traversalBatchSize).
			Scan(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, row := range rows {
			if err := visit(buildLine(decl, row)); err != nil {
				return err
			}
		}
		if len(rows) < traversalBatchSize {
			return nil
		}
	}
}

// totalsAccumulator folds lines into grand totals.
type totalsAccumulator struct {
	totals     GrandTotals
	accounts   map[string]struct{}
	exactGross decimal.Decimal
}

func newTotalsAccumulator() *totalsAccumulator {
	return &totalsAccumulator{
		totals: GrandTotals{
			ByClass: make(map[string]ClassSubtotal),
		},
		accounts: make(map[string]struct{}),
	}
}

func (a *totalsAccumulator) add(line EntitlementLine, decl *models.Declaration) {
	t := &a.totals
	t.TotalShares = t.TotalShares.Add(line.EligibleShares)
	t.TotalGross = t.TotalGross.Add(line.GrossAmount)
	t.TotalTax = t.TotalTax.Add(line.TaxAmount)
	t.TotalNet = t.TotalNet.Add(line.NetAmount)
	t.LineCount++

	if line.IsPayable {
		t.PayableCount++
		t.PayableNet = t.PayableNet.Add(line.NetAmount)
	} else {
		t.NonPayableCount++
		t.NonPayableNet = t.NonPayableNet.Add(line.NetAmount)
	}

	a.accounts[line.RegisterAccountID] = struct{}{}
	a.exactGross = a.exactGross.Add(line.EligibleShares.Mul(decl.RatePerShare))

	sub := t.ByClass[line.ShareClassCode]
	sub.Shares = sub.Shares.Add(line.EligibleShares)
	sub.Gross = sub.Gross.Add(line.GrossAmount)
	sub.Tax = sub.Tax.Add(line.TaxAmount)
	sub.Net = sub.Net.Add(line.NetAmount)
	sub.LineCount++
	t.ByClass[line.ShareClassCode] = sub
}

// finish computes the derived fields: distinct account count and the
// residue between summed per-line rounded gross and the exact product.
func (a *totalsAccumulator) finish() GrandTotals {
	a.totals.EligibleShareholdersCount = len(a.accounts)
	a.totals.RoundingResidue = a.totals.TotalGross.Sub(a.exactGross.Round(MoneyPrecision))
	return a.totals
}

// checkComputable validates the computation preconditions, naming the
// missing field.
func checkComputable(decl *models.Declaration) error {
	if !decl.RatePerShare.IsPositive() {
		return apperrors.ErrRateNotSet
	}
	if decl.RecordDate == nil {
		return apperrors.ErrRecordDateNotSet
	}
	return nil
}

func loadDeclaration(db *gorm.DB, declarationID string) (*models.Declaration, error) {
	var decl models.Declaration
	if err := db.First(&decl, "id = ?", declarationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDeclarationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &decl, nil
}

// PreviewEntitlements computes one page of entitlement lines plus the page
// and grand totals for a declaration. Fails with a validation error naming
// the missing field when rate_per_share or record_date are unset.
func (s *entitlementService) PreviewEntitlements(declarationID string, page pagination.PageRequest) (*EntitlementPreview, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if err := checkComputable(decl); err != nil {
		return nil, err
	}

	page.Defaults()

	lines := make([]EntitlementLine, 0, page.PageSize)
	var pageTotals PageTotals
	err = forEachLine(s.db, decl, &page, func(line EntitlementLine) error {
		lines = append(lines, line)
		pageTotals.Shares = pageTotals.Shares.Add(line.EligibleShares)
		pageTotals.Gross = pageTotals.Gross.Add(line.GrossAmount)
		pageTotals.Tax = pageTotals.Tax.Add(line.TaxAmount)
		pageTotals.Net = pageTotals.Net.Add(line.NetAmount)
		pageTotals.LineCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	grand, err := s.grandTotals(s.db, decl)
	if err != nil {
		return nil, err
	}

	return &EntitlementPreview{
		LineItems:   lines,
		PageTotals:  pageTotals,
		GrandTotals: *grand,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalItems:  grand.LineCount,
		TotalPages:  int(math.Ceil(float64(grand.LineCount) / float64(page.PageSize))),
	}, nil
}

// ComputeGrandTotals aggregates the entire eligible population of a
// declaration without persisting anything.
func (s *entitlementService) ComputeGrandTotals(declarationID string) (*GrandTotals, error) {
	decl, err := loadDeclaration(s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if err := checkComputable(decl); err != nil {
		return nil, err
	}
	return s.grandTotals(s.db, decl)
}

func (s *entitlementService) grandTotals(db *gorm.DB, decl *models.Declaration) (*GrandTotals, error) {
	acc := newTotalsAccumulator()
	err := forEachLine(db, decl, nil, func(line EntitlementLine) error {
		acc.add(line, decl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	totals := acc.finish()
	return &totals, nil
}
