package billing

import (
	"fmt"
	"time"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

// Send transitions a draft invoice to sent. It requires at least one line
// item and a non-negative total; anything else is rejected with
// ErrInvalidTransition.
func (inv *Invoice) Send(now time.Time) error {
	if inv.StoredStatus != StatusDraft {
		return fmt.Errorf("%w: send requires draft, invoice is %s", ErrInvalidTransition, inv.StoredStatus)
	}
	if len(inv.LineItems) == 0 {
		return fmt.Errorf("%w: cannot send an invoice without line items", ErrInvalidTransition)
	}
	if inv.Totals.Total.IsNegative() {
		return fmt.Errorf("%w: cannot send an invoice with a negative total", ErrInvalidTransition)
	}
	inv.StoredStatus = StatusSent
	inv.UpdatedAt = now
	return nil
}

// Void cancels an invoice. Legal from draft, or from sent while no payments
// have been recorded; an invoice with money against it cannot be voided.
func (inv *Invoice) Void(now time.Time) error {
	switch inv.StoredStatus {
	case StatusDraft:
	case StatusSent:
		if inv.Ledger.Count() > 0 {
			return fmt.Errorf("%w: cannot void an invoice with recorded payments", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: void requires draft or sent, invoice is %s", ErrInvalidTransition, inv.StoredStatus)
	}
	inv.StoredStatus = StatusCancelled
	inv.UpdatedAt = now
	return nil
}

// EffectiveStatus derives the status shown to callers from the stored
// status, due date and balance. It is evaluated at read time and never
// persisted, so a recomputed total cannot leave a stale status behind.
//
// Precedence is fixed: cancellation wins, then full payment, then overdue.
// A fully paid invoice is reported paid even past its due date.
func EffectiveStatus(stored Status, dueDate time.Time, balanceDue money.Money, now time.Time) Status {
	switch {
	case stored == StatusCancelled:
		return StatusCancelled
	case !balanceDue.IsPositive() && stored != StatusDraft:
		return StatusPaid
	case stored == StatusSent && dueDate.Before(now) && balanceDue.IsPositive():
		return StatusOverdue
	default:
		return stored
	}
}

// Effective reports the invoice's effective status at the given instant.
func (inv *Invoice) Effective(now time.Time) Status {
	return EffectiveStatus(inv.StoredStatus, inv.DueDate, inv.BalanceDue(), now)
}
