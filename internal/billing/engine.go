package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

var maxPercent = decimal.NewFromInt(100)

// ItemAmount computes a line item's amount as quantity times rate, rounded
// half up to the minor unit.
func ItemAmount(it LineItem) (money.Money, error) {
	if !it.Quantity.IsPositive() {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidLineItem)
	}
	if it.Rate.IsNegative() {
		return 0, fmt.Errorf("%w: rate must not be negative", ErrInvalidLineItem)
	}
	return it.Rate.MulRatio(it.Quantity), nil
}

// Subtotal sums the computed amount of every line item. An empty list yields
// zero; rejecting invoices without line items is the send transition's job,
// not this function's.
func Subtotal(items []LineItem) (money.Money, error) {
	var sum money.Money
	for i, it := range items {
		amount, err := ItemAmount(it)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		sum = sum.Add(amount)
	}
	return sum, nil
}

// ApplyDiscount resolves the discount amount for a subtotal. Flat discounts
// are clamped to the subtotal and percentages to 100, so the result can
// never exceed the subtotal. A nil spec means no discount.
func ApplyDiscount(subtotal money.Money, spec *DiscountSpec) (money.Money, error) {
	if spec == nil {
		return money.Zero, nil
	}
	switch spec.Type {
	case DiscountAmount:
		if spec.Amount.IsNegative() {
			return 0, fmt.Errorf("%w: amount must not be negative", ErrInvalidDiscount)
		}
		return money.Min(spec.Amount, subtotal), nil
	case DiscountPercentage:
		if spec.Percent.IsNegative() {
			return 0, fmt.Errorf("%w: percent must not be negative", ErrInvalidDiscount)
		}
		pct := spec.Percent
		if pct.GreaterThan(maxPercent) {
			pct = maxPercent
		}
		return subtotal.PercentOf(pct), nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, spec.Type)
	}
}

// ApplyTax computes the tax on the taxable amount (subtotal minus discount).
// The orchestrator guarantees the taxable amount is non-negative because the
// discount is clamped to the subtotal.
func ApplyTax(taxable money.Money, spec TaxSpec) (money.Money, error) {
	if spec.Rate.IsNegative() {
		return 0, fmt.Errorf("%w: rate must not be negative", ErrInvalidTax)
	}
	return taxable.PercentOf(spec.Rate), nil
}

// ComputeTotals orchestrates subtotal, discount and tax into the invoice
// totals. It is deterministic and pure: callers recompute totals on every
// mutation instead of patching stored figures.
func ComputeTotals(items []LineItem, discount *DiscountSpec, tax TaxSpec) (Totals, error) {
	subtotal, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}
	discountAmount, err := ApplyDiscount(subtotal, discount)
	if err != nil {
		return Totals{}, err
	}
	taxable := subtotal.Sub(discountAmount)
	taxAmount, err := ApplyTax(taxable, tax)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		Total:          taxable.Add(taxAmount),
	}, nil
}
