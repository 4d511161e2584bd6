package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NandiniGupta213/crm-billing/internal/money"
)

// Locker serializes work per key across service instances. The zero
// configuration (nil Locker) degrades to the store's version check alone,
// which is sufficient for a single instance.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// InvoiceInput carries the caller-supplied fields of an invoice.
type InvoiceInput struct {
	ClientID  string
	ProjectID string
	LineItems []LineItem
	Discount  *DiscountSpec
	Tax       TaxSpec
	IssueDate time.Time
	DueDate   time.Time
	Notes     string
}

// PaymentInput carries a record-payment request.
type PaymentInput struct {
	Reference string
	Amount    money.Money
	Method    PaymentMethod
	Date      time.Time
	Notes     string
}

// Service is the use-case layer over the engine: it owns the read-apply-save
// cycle against the store and the per-invoice serialization of payment
// recording. All financial figures are recomputed through the engine on
// every mutation, never patched in place.
type Service struct {
	Store   *Store
	Locker  Locker
	LockTTL time.Duration
	Now     func() time.Time
}

const saveAttempts = 3

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create builds a draft invoice from the input, computing totals up front.
func (s *Service) Create(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return nil, errors.New("billing: client id is required")
	}
	if in.DueDate.IsZero() {
		return nil, errors.New("billing: due date is required")
	}
	totals, err := ComputeTotals(in.LineItems, in.Discount, in.Tax)
	if err != nil {
		return nil, err
	}
	now := s.now()
	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}
	inv := &Invoice{
		ID:           uuid.New(),
		Number:       s.Store.NextNumber(),
		ClientID:     strings.TrimSpace(in.ClientID),
		ProjectID:    strings.TrimSpace(in.ProjectID),
		LineItems:    append([]LineItem(nil), in.LineItems...),
		Discount:     in.Discount,
		Tax:          in.Tax,
		Totals:       totals,
		StoredStatus: StatusDraft,
		IssueDate:    issueDate,
		DueDate:      in.DueDate,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.Store.Save(inv)
}

// UpdateDraft replaces the editable fields of a draft invoice and recomputes
// totals. Invoices that left draft are immutable; the caller gets
// ErrNotEditable.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in InvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return nil, errors.New("billing: client id is required")
	}
	if in.DueDate.IsZero() {
		return nil, errors.New("billing: due date is required")
	}
	return s.mutate(ctx, id, func(inv *Invoice) error {
		if inv.StoredStatus != StatusDraft {
			return fmt.Errorf("%w: invoice is %s", ErrNotEditable, inv.StoredStatus)
		}
		totals, err := ComputeTotals(in.LineItems, in.Discount, in.Tax)
		if err != nil {
			return err
		}
		// Full replacement of every editable field, so omitted values clear
		// rather than silently keeping the previous draft's.
		issueDate := in.IssueDate
		if issueDate.IsZero() {
			issueDate = s.now()
		}
		inv.ClientID = strings.TrimSpace(in.ClientID)
		inv.ProjectID = strings.TrimSpace(in.ProjectID)
		inv.LineItems = append([]LineItem(nil), in.LineItems...)
		inv.Discount = in.Discount
		inv.Tax = in.Tax
		inv.Totals = totals
		inv.IssueDate = issueDate
		inv.DueDate = in.DueDate
		inv.Notes = in.Notes
		inv.UpdatedAt = s.now()
		return nil
	})
}

// Send transitions a draft invoice to sent.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.mutate(ctx, id, func(inv *Invoice) error {
		return inv.Send(s.now())
	})
}

// Void cancels an invoice that has no payments against it.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.mutate(ctx, id, func(inv *Invoice) error {
		return inv.Void(s.now())
	})
}

// RecordPayment appends a payment to the invoice ledger. The whole
// read-apply-save cycle runs under the per-invoice lock so two concurrent
// submissions are applied sequentially; a retried submission reusing a
// reference is rejected by the ledger's idempotency guard.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Invoice, error) {
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	p := Payment{
		ID:        uuid.New(),
		Reference: in.Reference,
		Amount:    in.Amount,
		Method:    in.Method,
		Date:      date,
		Notes:     in.Notes,
	}
	return s.mutate(ctx, id, func(inv *Invoice) error {
		if inv.StoredStatus == StatusDraft || inv.StoredStatus == StatusCancelled {
			return fmt.Errorf("%w: cannot record a payment on a %s invoice", ErrInvalidTransition, inv.StoredStatus)
		}
		if err := inv.Ledger.Apply(p); err != nil {
			return err
		}
		inv.UpdatedAt = s.now()
		return nil
	})
}

// Get returns a snapshot of the invoice.
func (s *Service) Get(_ context.Context, id uuid.UUID) (*Invoice, error) {
	return s.Store.Get(id)
}

// List returns snapshots of all invoices.
func (s *Service) List(_ context.Context) []*Invoice {
	return s.Store.List()
}

// mutate runs fn against a fresh snapshot and saves the result, retrying on
// version conflicts. When a Locker is configured the cycle additionally runs
// under the invoice's lock key.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Invoice) error) (*Invoice, error) {
	var result *Invoice
	op := func(ctx context.Context) error {
		for attempt := 0; attempt < saveAttempts; attempt++ {
			inv, err := s.Store.Get(id)
			if err != nil {
				return err
			}
			if err := fn(inv); err != nil {
				return err
			}
			saved, err := s.Store.Save(inv)
			if err == nil {
				result = saved
				return nil
			}
			if !errors.Is(err, ErrVersionConflict) {
				return err
			}
		}
		return fmt.Errorf("billing: save retries exhausted for %s", id)
	}
	if s.Locker != nil {
		if err := s.Locker.WithLock(ctx, LockKey(id), s.LockTTL, op); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := op(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// LockKey is the Redis lock key serializing mutations of one invoice.
func LockKey(id uuid.UUID) string {
	return "billing:invoice:" + id.String()
}
