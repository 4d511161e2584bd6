package billing_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NandiniGupta213/crm-billing/internal/billing"
	"github.com/NandiniGupta213/crm-billing/internal/common"
	"github.com/NandiniGupta213/crm-billing/internal/obs"
)

type invoiceEnvelope struct {
	Data struct {
		ID               string `json:"id"`
		Number           string `json:"number"`
		Subtotal         int64  `json:"subtotal"`
		DiscountAmount   int64  `json:"discountAmount"`
		TaxAmount        int64  `json:"taxAmount"`
		Total            int64  `json:"total"`
		PaidAmount       int64  `json:"paidAmount"`
		BalanceDue       int64  `json:"balanceDue"`
		Status           string `json:"status"`
		StoredStatus     string `json:"storedStatus"`
		CanRecordPayment bool   `json:"canRecordPayment"`
		Version          int64  `json:"version"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (*chi.Mux, *billing.Store) {
	t.Helper()
	obs.MustRegisterDomainMetrics("billing", prometheus.NewRegistry())

	store := billing.NewStore()
	svc := &billing.Service{Store: store}
	handler := &billing.Handler{
		Svc:      svc,
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Route("/v1", handler.MountRoutes)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeInvoice(t *testing.T, rr *httptest.ResponseRecorder) invoiceEnvelope {
	t.Helper()
	var env invoiceEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func sampleInvoicePayload() map[string]any {
	return map[string]any{
		"clientId": "client-42",
		"dueDate":  time.Now().AddDate(0, 0, 30).UTC().Format(time.RFC3339),
		"lineItems": []map[string]any{
			{"description": "design", "quantity": "2", "rate": 50000},
			{"description": "build", "quantity": "1", "rate": 100000},
		},
		"discount": map[string]any{"type": "percentage", "percent": "10"},
		"taxRate":  "18",
	}
}

func TestCreateInvoice(t *testing.T) {
	r, store := newTestRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	env := decodeInvoice(t, rr)
	require.Equal(t, "INV-000001", env.Data.Number)
	require.Equal(t, int64(200000), env.Data.Subtotal)
	require.Equal(t, int64(20000), env.Data.DiscountAmount)
	require.Equal(t, int64(32400), env.Data.TaxAmount)
	require.Equal(t, int64(212400), env.Data.Total)
	require.Equal(t, int64(212400), env.Data.BalanceDue)
	require.Equal(t, "draft", env.Data.Status)
	require.False(t, env.Data.CanRecordPayment)
	require.Equal(t, 1, store.Count())

	get := doJSON(t, r, http.MethodGet, "/v1/invoices/"+env.Data.ID, nil)
	require.Equal(t, http.StatusOK, get.Code)
	require.Equal(t, env.Data.Total, decodeInvoice(t, get).Data.Total)
}

func TestCreateInvoiceRejectsBadQuantity(t *testing.T) {
	r, _ := newTestRouter(t)

	payload := sampleInvoicePayload()
	payload["lineItems"] = []map[string]any{
		{"description": "bad", "quantity": "0", "rate": 50000},
	}
	rr := doJSON(t, r, http.MethodPost, "/v1/invoices", payload)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_LINE_ITEM", decodeError(t, rr).Error.Code)

	payload["lineItems"] = []map[string]any{
		{"description": "bad", "quantity": "abc", "rate": 50000},
	}
	rr = doJSON(t, r, http.MethodPost, "/v1/invoices", payload)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_AMOUNT", decodeError(t, rr).Error.Code)
}

func TestCreateInvoiceRequiresClient(t *testing.T) {
	r, _ := newTestRouter(t)

	payload := sampleInvoicePayload()
	delete(payload, "clientId")
	rr := doJSON(t, r, http.MethodPost, "/v1/invoices", payload)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", decodeError(t, rr).Error.Code)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	r, store := newTestRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/invoices/preview", map[string]any{
		"lineItems": []map[string]any{
			{"description": "design", "quantity": "2", "rate": 50000},
			{"description": "build", "quantity": "1", "rate": 100000},
		},
		"discount": map[string]any{"type": "percentage", "percent": "10"},
		"taxRate":  "18",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var env struct {
		Data struct {
			Subtotal       int64 `json:"subtotal"`
			DiscountAmount int64 `json:"discountAmount"`
			TaxAmount      int64 `json:"taxAmount"`
			Total          int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, int64(200000), env.Data.Subtotal)
	require.Equal(t, int64(212400), env.Data.Total)
	require.Equal(t, 0, store.Count())
}

func TestPaymentLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeInvoice(t, doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload()))
	id := created.Data.ID

	// payments are rejected while the invoice is a draft
	rr := doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/payments", id), map[string]any{
		"reference": "PAY-1", "amount": 100000,
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "INVALID_TRANSITION", decodeError(t, rr).Error.Code)

	sent := doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/send", id), nil)
	require.Equal(t, http.StatusOK, sent.Code)
	require.Equal(t, "sent", decodeInvoice(t, sent).Data.Status)
	require.True(t, decodeInvoice(t, sent).Data.CanRecordPayment)

	rr = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/payments", id), map[string]any{
		"reference": "PAY-1", "amount": 100000, "method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	env := decodeInvoice(t, rr)
	require.Equal(t, int64(100000), env.Data.PaidAmount)
	require.Equal(t, int64(112400), env.Data.BalanceDue)
	require.Equal(t, "sent", env.Data.Status)

	// the same reference submitted again is rejected, not double-counted
	rr = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/payments", id), map[string]any{
		"reference": "PAY-1", "amount": 100000,
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "DUPLICATE_PAYMENT_REFERENCE", decodeError(t, rr).Error.Code)

	rr = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/payments", id), map[string]any{
		"reference": "PAY-2", "amount": 112400,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	env = decodeInvoice(t, rr)
	require.Equal(t, int64(0), env.Data.BalanceDue)
	require.Equal(t, "paid", env.Data.Status)
	require.Equal(t, "sent", env.Data.StoredStatus)
	require.False(t, env.Data.CanRecordPayment)
}

func TestVoidRejectedAfterPayment(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeInvoice(t, doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload()))
	id := created.Data.ID

	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/send", id), nil).Code)
	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/invoices/%s/payments", id), map[string]any{
		"reference": "PAY-1", "amount": 50000,
	}).Code)

	rr := doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/void", id), nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "INVALID_TRANSITION", decodeError(t, rr).Error.Code)
}

func TestUpdateRejectedAfterSend(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeInvoice(t, doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload()))
	id := created.Data.ID
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/send", id), nil).Code)

	rr := doJSON(t, r, http.MethodPut, "/v1/invoices/"+id, sampleInvoicePayload())
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "NOT_EDITABLE", decodeError(t, rr).Error.Code)
}

func TestListFiltersByEffectiveStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	first := decodeInvoice(t, doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload()))
	doJSON(t, r, http.MethodPost, "/v1/invoices", sampleInvoicePayload())
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/invoices/%s/send", first.Data.ID), nil).Code)

	rr := doJSON(t, r, http.MethodGet, "/v1/invoices?status=sent", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data []struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	require.Equal(t, "INV-000001", env.Data[0].Number)
}

func TestGetUnknownInvoice(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := doJSON(t, r, http.MethodGet, "/v1/invoices/0c9a3f0e-2d5b-4a7e-8f16-3f2d9f5f2b11", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rr).Error.Code)

	rr = doJSON(t, r, http.MethodGet, "/v1/invoices/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEngineErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{billing.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{billing.ErrDuplicatePaymentReference, "DUPLICATE_PAYMENT_REFERENCE", http.StatusConflict},
		{billing.ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
		{billing.ErrNotEditable, "NOT_EDITABLE", http.StatusConflict},
		{billing.ErrVersionConflict, "CONFLICT", http.StatusConflict},
		{billing.ErrInvalidLineItem, "INVALID_LINE_ITEM", http.StatusBadRequest},
		{billing.ErrInvalidDiscount, "BAD_REQUEST", http.StatusBadRequest},
		{fmt.Errorf("store offline"), "INTERNAL", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := billing.EngineError(fmt.Errorf("wrapped: %w", tc.err))
		require.Equal(t, tc.code, app.Code)
		require.Equal(t, tc.status, app.HTTPStatus)
		require.True(t, common.IsAppError(app))
	}
}
