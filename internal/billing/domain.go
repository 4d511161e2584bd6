// Package billing implements the invoice financial engine: line-item and
// total computation, discount and tax application, payment reconciliation
// and invoice status derivation. The engine is pure computation over the
// types below; transport and scheduling live with the callers.
package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

var (
	// ErrInvalidLineItem is returned for non-positive quantities or negative rates.
	ErrInvalidLineItem = errors.New("billing: invalid line item")
	// ErrInvalidDiscount is returned for malformed discount specs.
	ErrInvalidDiscount = errors.New("billing: invalid discount")
	// ErrInvalidTax is returned for negative tax rates.
	ErrInvalidTax = errors.New("billing: invalid tax rate")
	// ErrDuplicatePaymentReference rejects a payment whose reference was
	// already recorded on the invoice. This is the idempotency guard against
	// retried payment submissions.
	ErrDuplicatePaymentReference = errors.New("billing: duplicate payment reference")
	// ErrInvalidPayment is returned for non-positive amounts or missing references.
	ErrInvalidPayment = errors.New("billing: invalid payment")
	// ErrInvalidTransition is returned when an explicit status transition is
	// not legal from the invoice's current state.
	ErrInvalidTransition = errors.New("billing: invalid status transition")
	// ErrNotEditable is returned when line items, discount or tax are
	// modified on an invoice that left draft.
	ErrNotEditable = errors.New("billing: invoice is no longer editable")
)

// Status enumerates invoice statuses. StoredStatus on an invoice is the last
// explicitly set value; the status surfaced to callers is always derived,
// see EffectiveStatus.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// DiscountType selects between a flat amount and a percentage discount.
type DiscountType string

const (
	DiscountAmount     DiscountType = "amount"
	DiscountPercentage DiscountType = "percentage"
)

// DiscountSpec configures the invoice-level discount. Amount is used for
// flat discounts (minor units), Percent for percentage discounts; whichever
// does not match Type is ignored.
type DiscountSpec struct {
	Type    DiscountType
	Amount  money.Money
	Percent decimal.Decimal
}

// TaxSpec configures the flat tax rate applied to the taxable amount.
type TaxSpec struct {
	Rate decimal.Decimal
}

// LineItem is a single billable entry. Its amount is always derived from
// quantity and rate, never stored independently.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	Rate        money.Money
}

// Totals carries the computed financial figures of an invoice.
// Invariant: Total == Subtotal - DiscountAmount + TaxAmount.
type Totals struct {
	Subtotal       money.Money
	DiscountAmount money.Money
	TaxAmount      money.Money
	Total          money.Money
}

// PaymentMethod enumerates how a payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
)

// Payment is an immutable record of money received against an invoice.
// Reference must be unique per invoice.
type Payment struct {
	ID        uuid.UUID
	Reference string
	Amount    money.Money
	Method    PaymentMethod
	Date      time.Time
	Notes     string
}

// Invoice is the aggregate root. It exclusively owns its line items and
// ledger; clients and projects are referenced by identifier only.
type Invoice struct {
	ID           uuid.UUID
	Number       string
	ClientID     string
	ProjectID    string
	LineItems    []LineItem
	Discount     *DiscountSpec
	Tax          TaxSpec
	Totals       Totals
	Ledger       Ledger
	StoredStatus Status
	IssueDate    time.Time
	DueDate      time.Time
	Notes        string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BalanceDue is the invoice total minus recorded payments. It may be
// negative on overpayment; callers decide how to surface that.
func (inv *Invoice) BalanceDue() money.Money {
	return inv.Ledger.BalanceDue(inv.Totals.Total)
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the aggregate's internal slices.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	out.LineItems = append([]LineItem(nil), inv.LineItems...)
	if inv.Discount != nil {
		d := *inv.Discount
		out.Discount = &d
	}
	out.Ledger = inv.Ledger.clone()
	return &out
}
