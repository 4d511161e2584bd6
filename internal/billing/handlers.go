package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/NandiniGupta213/crm-billing/internal/common"
	"github.com/NandiniGupta213/crm-billing/internal/money"
	"github.com/NandiniGupta213/crm-billing/internal/obs"
)

// Handler exposes the invoice API. Every monetary figure it returns comes
// from the engine; handlers only translate between wire payloads and engine
// types.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type lineItemPayload struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity" validate:"required"`
	Rate        int64  `json:"rate"`
}

type discountPayload struct {
	Type    string `json:"type" validate:"required"`
	Amount  int64  `json:"amount"`
	Percent string `json:"percent"`
}

type invoicePayload struct {
	ClientID  string            `json:"clientId" validate:"required"`
	ProjectID string            `json:"projectId"`
	LineItems []lineItemPayload `json:"lineItems"`
	Discount  *discountPayload  `json:"discount"`
	TaxRate   string            `json:"taxRate"`
	IssueDate *time.Time        `json:"issueDate"`
	DueDate   time.Time         `json:"dueDate" validate:"required"`
	Notes     string            `json:"notes"`
}

type previewPayload struct {
	LineItems []lineItemPayload `json:"lineItems"`
	Discount  *discountPayload  `json:"discount"`
	TaxRate   string            `json:"taxRate"`
}

type paymentPayload struct {
	Reference string     `json:"reference" validate:"required"`
	Amount    int64      `json:"amount"`
	Method    string     `json:"method"`
	Date      *time.Time `json:"date"`
	Notes     string     `json:"notes"`
}

// MountRoutes attaches the invoice endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/preview", h.Preview)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Put("/send", h.Send)
			r.Put("/void", h.Void)
			r.Post("/payments", h.RecordPayment)
		})
	})
}

// Create registers a new draft invoice.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload invoicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	in, err := toInvoiceInput(payload)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	inv, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	obs.InvoicesCreated.Inc()
	h.Logger.Info().Str("invoice_id", inv.ID.String()).Str("number", inv.Number).Msg("invoice created")
	common.JSONData(w, http.StatusCreated, NewInvoiceView(inv, time.Now()))
}

// Get returns a single invoice with its effective status.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, NewInvoiceView(inv, time.Now()))
}

// List returns all invoices. Status filtering happens against the effective
// status so the list can never disagree with the detail view.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	filter := Status(strings.TrimSpace(r.URL.Query().Get("status")))
	views := make([]InvoiceView, 0)
	for _, inv := range h.Svc.List(r.Context()) {
		view := NewInvoiceView(inv, now)
		if filter != "" && view.Status != string(filter) {
			continue
		}
		views = append(views, view)
	}
	common.JSONData(w, http.StatusOK, views)
}

// Update replaces the editable fields of a draft invoice.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var payload invoicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	in, err := toInvoiceInput(payload)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	inv, err := h.Svc.UpdateDraft(r.Context(), id, in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, NewInvoiceView(inv, time.Now()))
}

// Preview computes totals without persisting anything. The authoring UI
// calls this on every edit for a live preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	items, err := toLineItems(payload.LineItems)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	discount, err := toDiscountSpec(payload.Discount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	tax, err := toTaxSpec(payload.TaxRate)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	totals, err := ComputeTotals(items, discount, tax)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, TotalsView{
		Subtotal:       totals.Subtotal.Minor(),
		DiscountAmount: totals.DiscountAmount.Minor(),
		TaxAmount:      totals.TaxAmount.Minor(),
		Total:          totals.Total.Minor(),
	})
}

// Send transitions a draft invoice to sent.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "send", h.Svc.Send)
}

// Void cancels an invoice without payments.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "void", h.Svc.Void)
}

// RecordPayment appends a payment to the invoice ledger.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var payload paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	in := PaymentInput{
		Reference: payload.Reference,
		Amount:    money.FromMinor(payload.Amount),
		Method:    toPaymentMethod(payload.Method),
		Notes:     payload.Notes,
	}
	if payload.Date != nil {
		in.Date = *payload.Date
	}
	inv, err := h.Svc.RecordPayment(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrDuplicatePaymentReference) {
			obs.PaymentsApplied.WithLabelValues("duplicate").Inc()
		} else {
			obs.PaymentsApplied.WithLabelValues("rejected").Inc()
		}
		h.writeEngineError(w, err)
		return
	}
	obs.PaymentsApplied.WithLabelValues("applied").Inc()
	h.Logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("reference", in.Reference).
		Int64("amount", in.Amount.Minor()).
		Int64("balance_due", inv.BalanceDue().Minor()).
		Msg("payment recorded")
	common.JSONData(w, http.StatusCreated, NewInvoiceView(inv, time.Now()))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, uuid.UUID) (*Invoice, error)) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		obs.InvoiceTransitions.WithLabelValues(action, "rejected").Inc()
		h.writeEngineError(w, err)
		return
	}
	obs.InvoiceTransitions.WithLabelValues(action, "ok").Inc()
	h.Logger.Info().Str("invoice_id", inv.ID.String()).Str("action", action).Msg("invoice transition")
	common.JSONData(w, http.StatusOK, NewInvoiceView(inv, time.Now()))
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	app := EngineError(err)
	if app.HTTPStatus == http.StatusInternalServerError {
		h.Logger.Error().Err(err).Msg("invoice handler failure")
	}
	common.JSONAppError(w, app)
}

// EngineError maps typed engine failures onto AppError values. The mapping
// is the single place HTTP semantics are attached; validation conditions
// themselves always originate in the engine.
func EngineError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "invoice not found", http.StatusNotFound, err)
	case errors.Is(err, ErrDuplicatePaymentReference):
		return common.NewAppError("DUPLICATE_PAYMENT_REFERENCE", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrNotEditable):
		return common.NewAppError("NOT_EDITABLE", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrVersionConflict):
		return common.NewAppError("CONFLICT", "invoice changed concurrently, retry", http.StatusConflict, err)
	case errors.Is(err, ErrInvalidLineItem):
		return common.NewAppError("INVALID_LINE_ITEM", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrInvalidTax), errors.Is(err, ErrInvalidPayment):
		return common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, money.ErrInvalidAmount):
		return common.NewAppError("INVALID_AMOUNT", err.Error(), http.StatusBadRequest, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}

func toInvoiceInput(payload invoicePayload) (InvoiceInput, error) {
	items, err := toLineItems(payload.LineItems)
	if err != nil {
		return InvoiceInput{}, err
	}
	discount, err := toDiscountSpec(payload.Discount)
	if err != nil {
		return InvoiceInput{}, err
	}
	tax, err := toTaxSpec(payload.TaxRate)
	if err != nil {
		return InvoiceInput{}, err
	}
	in := InvoiceInput{
		ClientID:  payload.ClientID,
		ProjectID: payload.ProjectID,
		LineItems: items,
		Discount:  discount,
		Tax:       tax,
		DueDate:   payload.DueDate,
		Notes:     payload.Notes,
	}
	if payload.IssueDate != nil {
		in.IssueDate = *payload.IssueDate
	}
	return in, nil
}

func toLineItems(payloads []lineItemPayload) ([]LineItem, error) {
	out := make([]LineItem, 0, len(payloads))
	for _, p := range payloads {
		qty, err := money.ParseDecimal(p.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, LineItem{
			Description: strings.TrimSpace(p.Description),
			Quantity:    qty,
			Rate:        money.FromMinor(p.Rate),
		})
	}
	return out, nil
}

func toDiscountSpec(payload *discountPayload) (*DiscountSpec, error) {
	if payload == nil {
		return nil, nil
	}
	spec := &DiscountSpec{Type: DiscountType(strings.TrimSpace(payload.Type))}
	switch spec.Type {
	case DiscountAmount:
		spec.Amount = money.FromMinor(payload.Amount)
	case DiscountPercentage:
		pct, err := money.ParseDecimal(payload.Percent)
		if err != nil {
			return nil, err
		}
		spec.Percent = pct
	}
	return spec, nil
}

func toTaxSpec(rate string) (TaxSpec, error) {
	if strings.TrimSpace(rate) == "" {
		return TaxSpec{}, nil
	}
	parsed, err := money.ParseDecimal(rate)
	if err != nil {
		return TaxSpec{}, err
	}
	return TaxSpec{Rate: parsed}, nil
}

func toPaymentMethod(method string) PaymentMethod {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(method))) {
	case MethodCash:
		return MethodCash
	case MethodBankTransfer:
		return MethodBankTransfer
	case MethodCard:
		return MethodCard
	case MethodCheque:
		return MethodCheque
	default:
		return MethodOther
	}
}
