package billing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

// Ledger accumulates payments against a single invoice. It is append-only:
// corrections are new payments, never edits. The ledger itself is not safe
// for concurrent use; callers serialize access per invoice.
type Ledger struct {
	payments []Payment
}

// Apply records a payment. Payments with a reference already present on the
// ledger are rejected with ErrDuplicatePaymentReference so a retried
// submission cannot double-count.
func (l *Ledger) Apply(p Payment) error {
	ref := strings.TrimSpace(p.Reference)
	if ref == "" {
		return fmt.Errorf("%w: reference is required", ErrInvalidPayment)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	for _, existing := range l.payments {
		if existing.Reference == ref {
			return fmt.Errorf("%w: %q", ErrDuplicatePaymentReference, ref)
		}
	}
	p.Reference = ref
	l.payments = append(l.payments, p)
	return nil
}

// PaidAmount is the sum of all recorded payments.
func (l *Ledger) PaidAmount() money.Money {
	var sum money.Money
	for _, p := range l.payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// BalanceDue is total minus paid. It is always recomputed from the ledger,
// never stored, and may be negative on overpayment.
func (l *Ledger) BalanceDue(total money.Money) money.Money {
	return total.Sub(l.PaidAmount())
}

// Count returns the number of recorded payments.
func (l *Ledger) Count() int { return len(l.payments) }

// Payments returns the recorded payments ordered by payment date, with
// insertion order breaking ties.
func (l *Ledger) Payments() []Payment {
	out := append([]Payment(nil), l.payments...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (l *Ledger) clone() Ledger {
	return Ledger{payments: append([]Payment(nil), l.payments...)}
}
