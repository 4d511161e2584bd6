package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleItems() []LineItem {
	return []LineItem{
		{Description: "Development", Quantity: qty("2"), Rate: money.FromMinor(500_00)},
		{Description: "Design", Quantity: qty("1"), Rate: money.FromMinor(1000_00)},
	}
}

func TestComputeTotalsWorkedExample(t *testing.T) {
	// 2x500 + 1x1000 = 2000, 10% discount = 200, 18% tax on 1800 = 324.
	discount := &DiscountSpec{Type: DiscountPercentage, Percent: qty("10")}
	totals, err := ComputeTotals(sampleItems(), discount, TaxSpec{Rate: qty("18")})
	if err != nil {
		t.Fatalf("ComputeTotals: %v", err)
	}
	if totals.Subtotal.Minor() != 2000_00 {
		t.Fatalf("subtotal = %d, want 200000", totals.Subtotal.Minor())
	}
	if totals.DiscountAmount.Minor() != 200_00 {
		t.Fatalf("discount = %d, want 20000", totals.DiscountAmount.Minor())
	}
	if totals.TaxAmount.Minor() != 324_00 {
		t.Fatalf("tax = %d, want 32400", totals.TaxAmount.Minor())
	}
	if totals.Total.Minor() != 2124_00 {
		t.Fatalf("total = %d, want 212400", totals.Total.Minor())
	}
}

func TestComputeTotalsDeterministic(t *testing.T) {
	discount := &DiscountSpec{Type: DiscountPercentage, Percent: qty("12.5")}
	tax := TaxSpec{Rate: qty("7.25")}
	first, err := ComputeTotals(sampleItems(), discount, tax)
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := ComputeTotals(sampleItems(), discount, tax)
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if first != second {
		t.Fatalf("identical input produced different totals: %+v vs %+v", first, second)
	}
}

func TestTotalIdentity(t *testing.T) {
	cases := []struct {
		name     string
		items    []LineItem
		discount *DiscountSpec
		tax      TaxSpec
	}{
		{"no discount no tax", sampleItems(), nil, TaxSpec{}},
		{"flat discount", sampleItems(), &DiscountSpec{Type: DiscountAmount, Amount: money.FromMinor(150_00)}, TaxSpec{Rate: qty("18")}},
		{"fractional everything", []LineItem{{Quantity: qty("2.5"), Rate: money.FromMinor(10_99)}}, &DiscountSpec{Type: DiscountPercentage, Percent: qty("3.33")}, TaxSpec{Rate: qty("7.7")}},
		{"empty items", nil, &DiscountSpec{Type: DiscountPercentage, Percent: qty("50")}, TaxSpec{Rate: qty("18")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals(tc.items, tc.discount, tc.tax)
			if err != nil {
				t.Fatalf("ComputeTotals: %v", err)
			}
			want := totals.Subtotal.Sub(totals.DiscountAmount).Add(totals.TaxAmount)
			if totals.Total != want {
				t.Fatalf("total identity violated: total=%d, subtotal-discount+tax=%d", totals.Total.Minor(), want.Minor())
			}
			if totals.DiscountAmount > totals.Subtotal {
				t.Fatalf("discount %d exceeds subtotal %d", totals.DiscountAmount.Minor(), totals.Subtotal.Minor())
			}
		})
	}
}

func TestItemAmountValidation(t *testing.T) {
	if _, err := ItemAmount(LineItem{Quantity: qty("0"), Rate: money.FromMinor(100)}); !errors.Is(err, ErrInvalidLineItem) {
		t.Fatalf("zero quantity: expected ErrInvalidLineItem, got %v", err)
	}
	if _, err := ItemAmount(LineItem{Quantity: qty("-1"), Rate: money.FromMinor(100)}); !errors.Is(err, ErrInvalidLineItem) {
		t.Fatalf("negative quantity: expected ErrInvalidLineItem, got %v", err)
	}
	if _, err := ItemAmount(LineItem{Quantity: qty("1"), Rate: money.FromMinor(-1)}); !errors.Is(err, ErrInvalidLineItem) {
		t.Fatalf("negative rate: expected ErrInvalidLineItem, got %v", err)
	}
	// Zero rate is fine: free-of-charge lines exist.
	amount, err := ItemAmount(LineItem{Quantity: qty("3"), Rate: money.Zero})
	if err != nil || amount != money.Zero {
		t.Fatalf("zero rate: got %d, %v", amount.Minor(), err)
	}
}

func TestSubtotalEmpty(t *testing.T) {
	sum, err := Subtotal(nil)
	if err != nil {
		t.Fatalf("Subtotal(nil): %v", err)
	}
	if !sum.IsZero() {
		t.Fatalf("expected zero subtotal, got %d", sum.Minor())
	}
}

func TestApplyDiscountFlatClamped(t *testing.T) {
	subtotal := money.FromMinor(500_00)
	got, err := ApplyDiscount(subtotal, &DiscountSpec{Type: DiscountAmount, Amount: money.FromMinor(900_00)})
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if got != subtotal {
		t.Fatalf("flat discount not clamped: got %d", got.Minor())
	}
}

func TestApplyDiscountPercentCapped(t *testing.T) {
	subtotal := money.FromMinor(500_00)
	got, err := ApplyDiscount(subtotal, &DiscountSpec{Type: DiscountPercentage, Percent: qty("250")})
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if got != subtotal {
		t.Fatalf("percent discount not capped at 100%%: got %d", got.Minor())
	}
}

func TestApplyDiscountRejectsNegative(t *testing.T) {
	if _, err := ApplyDiscount(money.FromMinor(100), &DiscountSpec{Type: DiscountPercentage, Percent: qty("-1")}); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
	if _, err := ApplyDiscount(money.FromMinor(100), &DiscountSpec{Type: DiscountAmount, Amount: money.FromMinor(-1)}); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
	if _, err := ApplyDiscount(money.FromMinor(100), &DiscountSpec{Type: "bogus"}); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount for unknown type, got %v", err)
	}
}

func TestApplyTax(t *testing.T) {
	got, err := ApplyTax(money.FromMinor(1800_00), TaxSpec{Rate: qty("18")})
	if err != nil {
		t.Fatalf("ApplyTax: %v", err)
	}
	if got.Minor() != 324_00 {
		t.Fatalf("tax = %d, want 32400", got.Minor())
	}
	if _, err := ApplyTax(money.FromMinor(100), TaxSpec{Rate: qty("-5")}); !errors.Is(err, ErrInvalidTax) {
		t.Fatalf("expected ErrInvalidTax, got %v", err)
	}
}
