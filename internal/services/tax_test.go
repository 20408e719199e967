package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

func TestComputeTaxLine(t *testing.T) {
	t.Run("standard_withholding", func(t *testing.T) {
		// 100000 shares at 1.25 with 10% withholding.
		tl := ComputeTaxLine(mustDecimal(t, "100000"), mustDecimal(t, "1.25"), mustDecimal(t, "10"))

		if !tl.Gross.Equal(mustDecimal(t, "125000")) {
			t.Errorf("expected gross 125000, got %s", tl.Gross)
		}
		if !tl.Tax.Equal(mustDecimal(t, "12500")) {
			t.Errorf("expected tax 12500, got %s", tl.Tax)
		}
		if !tl.Net.Equal(mustDecimal(t, "112500")) {
			t.Errorf("expected net 112500, got %s", tl.Net)
		}
	})

	t.Run("zero_tax_rate", func(t *testing.T) {
		tl := ComputeTaxLine(mustDecimal(t, "500"), mustDecimal(t, "0.10"), decimal.Zero)

		if !tl.Gross.Equal(mustDecimal(t, "50")) {
			t.Errorf("expected gross 50, got %s", tl.Gross)
		}
		if !tl.Tax.IsZero() {
			t.Errorf("expected zero tax, got %s", tl.Tax)
		}
		if !tl.Net.Equal(tl.Gross) {
			t.Errorf("expected net to equal gross, got %s", tl.Net)
		}
	})

	t.Run("rounds_gross_to_money_precision", func(t *testing.T) {
		// 333.333333 × 0.015 = 4.999999995, rounds to 5.00.
		tl := ComputeTaxLine(mustDecimal(t, "333.333333"), mustDecimal(t, "0.015"), mustDecimal(t, "7.5"))

		if !tl.Gross.Equal(mustDecimal(t, "5.00")) {
			t.Errorf("expected gross 5.00, got %s", tl.Gross)
		}
		if tl.Tax.Exponent() < -2 {
			t.Errorf("expected tax at money precision, got %s", tl.Tax)
		}
	})

	t.Run("net_plus_tax_equals_gross", func(t *testing.T) {
		// Tax computed from rounded gross then rounded again; the identity
		// must hold for awkward rates too.
		cases := [][3]string{
			{"123.456789", "0.333333", "12.3456"},
			{"1", "0.01", "33.3333"},
			{"999999.999999", "7.777777", "15"},
			{"0.000001", "1000000", "50"},
		}
		for _, c := range cases {
			tl := ComputeTaxLine(mustDecimal(t, c[0]), mustDecimal(t, c[1]), mustDecimal(t, c[2]))
			if !tl.Net.Add(tl.Tax).Equal(tl.Gross) {
				t.Errorf("shares=%s rate=%s tax=%s: net %s + tax %s != gross %s",
					c[0], c[1], c[2], tl.Net, tl.Tax, tl.Gross)
			}
		}
	})
}
