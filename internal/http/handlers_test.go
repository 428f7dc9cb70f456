package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"karne/internal/core"
	"karne/internal/feed"
	"karne/internal/ledger"
	"karne/internal/remote/memory"
	"karne/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := ledger.NewStore()
	rem := memory.New()
	svc := services.NewLedgerService(store, rem, feed.Nop{}, services.DefaultOptions())
	return NewServer(":0", store, svc, rem), rem
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestClientEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/clients", map[string]string{"name": "john"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[clientResponse](t, rec)
	if created.ID != "G001" || created.Name != "John" {
		t.Fatalf("created = %+v, want G001/John", created)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/clients", map[string]string{"name": "JOHN"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/clients/G001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/clients/G999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPatch, "/api/clients/G001", map[string]string{"name": "johnny b"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body %s", rec.Code, rec.Body.String())
	}
	renamed := decodeBody[clientResponse](t, rec)
	if renamed.Name != "Johnny B" {
		t.Fatalf("renamed name = %q, want Johnny B", renamed.Name)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/clients?q=johnny", nil)
	list := decodeBody[[]clientResponse](t, rec)
	if len(list) != 1 || list[0].ID != "G001" {
		t.Fatalf("search result = %+v, want only G001", list)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/clients/G001", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestDebtAndPaymentEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/clients", map[string]string{"name": "marie"})

	rec := doJSON(t, s, http.MethodPost, "/api/clients/G001/transactions",
		map[string]any{"description": "2 Bouteille", "amount": "250"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("transaction status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/clients/G001/payments", map[string]any{"amount": "100"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Overpayment maps to 400.
	rec = doJSON(t, s, http.MethodPost, "/api/clients/G001/payments", map[string]any{"amount": "200"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overpayment status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/clients/G001", nil)
	client := decodeBody[clientResponse](t, rec)
	if !client.TotalDebt.Equal(core.MustMoney("150")) {
		t.Fatalf("total debt = %s, want 150", client.TotalDebt)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/clients/G001/settle", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("settle status = %d, body %s", rec.Code, rec.Body.String())
	}
	payment := decodeBody[paymentResponse](t, rec)
	if payment.Type != string(core.PaymentFull) || !payment.Amount.Equal(core.MustMoney("150")) {
		t.Fatalf("settle payment = %+v, want full 150", payment)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/clients/G001/payments", nil)
	payments := decodeBody[[]paymentResponse](t, rec)
	if len(payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(payments))
	}
}

func TestReturnBottlesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/clients", map[string]string{"name": "paul"})

	rec := doJSON(t, s, http.MethodPost, "/api/clients/G001/bottles/return", map[string]int{"beer": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("return status = %d, body %s", rec.Code, rec.Body.String())
	}
	client := decodeBody[clientResponse](t, rec)
	if client.BottlesOwed["beer"] != 0 {
		t.Fatalf("beer owed = %d, want clamped 0", client.BottlesOwed["beer"])
	}

	rec = doJSON(t, s, http.MethodPost, "/api/clients/G001/bottles/return", map[string]int{"wine": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d, want 400", rec.Code)
	}
}

func TestRemoteFailureMapsToBadGateway(t *testing.T) {
	s, rem := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/clients", map[string]string{"name": "rita"})
	rem.FailWith(fmt.Errorf("%w: down", core.ErrRemoteFailure))

	rec := doJSON(t, s, http.MethodPost, "/api/clients/G001/transactions",
		map[string]any{"description": "x", "amount": "10"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestCalcEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		expr   string
		status int
		result string
	}{
		{"12.50×2", http.StatusOK, "25"},
		{"2+3×4", http.StatusOK, "14"},
		{"3+2+", http.StatusOK, "5"},
		{"8÷0", http.StatusBadRequest, ""},
		{"abc", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		rec := doJSON(t, s, http.MethodPost, "/api/calc", map[string]string{"expression": tc.expr})
		if rec.Code != tc.status {
			t.Errorf("%q: status = %d, want %d (body %s)", tc.expr, rec.Code, tc.status, rec.Body.String())
			continue
		}
		if tc.status == http.StatusOK {
			got := decodeBody[map[string]string](t, rec)
			if got["result"] != tc.result {
				t.Errorf("%q: result = %q, want %q", tc.expr, got["result"], tc.result)
			}
		}
	}
}

func TestBadJSONBody(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/clients", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s, rem := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	rem.FailWith(fmt.Errorf("%w: down", core.ErrRemoteFailure))
	rec = doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz degraded status = %d, want 503", rec.Code)
	}
}
