package services

import "github.com/shopspring/decimal"

// Presentation precision: shares carry 6 decimal places, money 2.
// Accumulation always stays in decimal; rounding happens per line before
// summation so page and grand totals match the printed line amounts.
const (
	SharePrecision = 6
	MoneyPrecision = 2
)

var hundred = decimal.NewFromInt(100)

// TaxLine holds the gross, withheld tax and net amounts for one line.
type TaxLine struct {
	Gross decimal.Decimal `json:"gross"`
	Tax   decimal.Decimal `json:"tax"`
	Net   decimal.Decimal `json:"net"`
}

// ComputeTaxLine computes the tax-adjusted payout for one position:
//
//	gross = eligibleShares × ratePerShare
//	tax   = gross × withholdingTaxRate / 100
//	net   = gross − tax
//
// Gross and tax are rounded to money precision; net is derived from the
// rounded values so net + tax == gross holds exactly for every line.
func ComputeTaxLine(eligibleShares, ratePerShare, withholdingTaxRate decimal.Decimal) TaxLine {
	gross := eligibleShares.Mul(ratePerShare).Round(MoneyPrecision)
	tax := gross.Mul(withholdingTaxRate).Div(hundred).Round(MoneyPrecision)
	return TaxLine{
		Gross: gross,
		Tax:   tax,
		Net:   gross.Sub(tax),
	}
}
