package billing

import (
	"time"
)

// LineItemView is the wire representation of a line item. Monetary fields
// are minor units; quantity is a decimal string.
type LineItemView struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Rate        int64  `json:"rate"`
	Amount      int64  `json:"amount"`
}

// DiscountView mirrors DiscountSpec on the wire.
type DiscountView struct {
	Type    string `json:"type"`
	Amount  int64  `json:"amount,omitempty"`
	Percent string `json:"percent,omitempty"`
}

// PaymentView is the wire representation of a recorded payment.
type PaymentView struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes,omitempty"`
}

// TotalsView carries computed financial figures.
type TotalsView struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discountAmount"`
	TaxAmount      int64 `json:"taxAmount"`
	Total          int64 `json:"total"`
}

// InvoiceView is the full invoice representation returned by the API.
// Status is the effective status derived at render time; storedStatus is
// the last explicitly set value.
type InvoiceView struct {
	ID               string         `json:"id"`
	Number           string         `json:"number"`
	ClientID         string         `json:"clientId"`
	ProjectID        string         `json:"projectId,omitempty"`
	LineItems        []LineItemView `json:"lineItems"`
	Discount         *DiscountView  `json:"discount,omitempty"`
	TaxRate          string         `json:"taxRate"`
	Subtotal         int64          `json:"subtotal"`
	DiscountAmount   int64          `json:"discountAmount"`
	TaxAmount        int64          `json:"taxAmount"`
	Total            int64          `json:"total"`
	PaidAmount       int64          `json:"paidAmount"`
	BalanceDue       int64          `json:"balanceDue"`
	Status           string         `json:"status"`
	StoredStatus     string         `json:"storedStatus"`
	CanRecordPayment bool           `json:"canRecordPayment"`
	Payments         []PaymentView  `json:"payments"`
	IssueDate        time.Time      `json:"issueDate"`
	DueDate          time.Time      `json:"dueDate"`
	Notes            string         `json:"notes,omitempty"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// NewInvoiceView renders an invoice snapshot for the API, deriving the
// effective status and action gating at the provided instant.
func NewInvoiceView(inv *Invoice, now time.Time) InvoiceView {
	items := make([]LineItemView, 0, len(inv.LineItems))
	for _, it := range inv.LineItems {
		amount, err := ItemAmount(it)
		if err != nil {
			amount = 0
		}
		items = append(items, LineItemView{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Rate:        it.Rate.Minor(),
			Amount:      amount.Minor(),
		})
	}
	payments := make([]PaymentView, 0, inv.Ledger.Count())
	for _, p := range inv.Ledger.Payments() {
		payments = append(payments, PaymentView{
			ID:        p.ID.String(),
			Reference: p.Reference,
			Amount:    p.Amount.Minor(),
			Method:    string(p.Method),
			Date:      p.Date,
			Notes:     p.Notes,
		})
	}
	var discount *DiscountView
	if inv.Discount != nil {
		discount = &DiscountView{Type: string(inv.Discount.Type)}
		switch inv.Discount.Type {
		case DiscountAmount:
			discount.Amount = inv.Discount.Amount.Minor()
		case DiscountPercentage:
			discount.Percent = inv.Discount.Percent.String()
		}
	}
	effective := inv.Effective(now)
	balance := inv.BalanceDue()
	return InvoiceView{
		ID:               inv.ID.String(),
		Number:           inv.Number,
		ClientID:         inv.ClientID,
		ProjectID:        inv.ProjectID,
		LineItems:        items,
		Discount:         discount,
		TaxRate:          inv.Tax.Rate.String(),
		Subtotal:         inv.Totals.Subtotal.Minor(),
		DiscountAmount:   inv.Totals.DiscountAmount.Minor(),
		TaxAmount:        inv.Totals.TaxAmount.Minor(),
		Total:            inv.Totals.Total.Minor(),
		PaidAmount:       inv.Ledger.PaidAmount().Minor(),
		BalanceDue:       balance.Minor(),
		Status:           string(effective),
		StoredStatus:     string(inv.StoredStatus),
		CanRecordPayment: canRecordPayment(effective, balance.Minor()),
		Payments:         payments,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Notes:            inv.Notes,
		Version:          inv.Version,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

// canRecordPayment gates the record-payment action: drafts and cancelled
// invoices take no payments, and neither does anything with a zero or
// negative balance.
func canRecordPayment(effective Status, balanceMinor int64) bool {
	switch effective {
	case StatusSent, StatusOverdue:
		return balanceMinor > 0
	default:
		return false
	}
}
