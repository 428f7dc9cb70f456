package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"karne/internal/calc"
	"karne/internal/core"
)

type clientResponse struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	TotalDebt         core.Money     `json:"totalDebt"`
	BottlesOwed       map[string]int `json:"bottlesOwed"`
	CreatedAt         time.Time      `json:"createdAt"`
	LastTransactionAt time.Time      `json:"lastTransactionAt"`
}

type transactionResponse struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Date        time.Time  `json:"date"`
	Type        string     `json:"type"`
}

type paymentResponse struct {
	ID       string     `json:"id"`
	ClientID string     `json:"clientId"`
	Amount   core.Money `json:"amount"`
	Date     time.Time  `json:"date"`
	Type     string     `json:"type"`
}

func toClientResponse(c core.Client) clientResponse {
	bottles := make(map[string]int, len(c.BottlesOwed))
	for cat, n := range c.BottlesOwed {
		bottles[string(cat)] = n
	}
	return clientResponse{
		ID:                c.ID,
		Name:              c.Name,
		TotalDebt:         c.TotalDebt,
		BottlesOwed:       bottles,
		CreatedAt:         c.CreatedAt,
		LastTransactionAt: c.LastTransactionAt,
	}
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		ClientID:    tx.ClientID,
		Description: tx.Description,
		Amount:      tx.Amount,
		Date:        tx.Date,
		Type:        string(tx.Type),
	}
}

func toPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:       p.ID,
		ClientID: p.ClientID,
		Amount:   p.Amount,
		Date:     p.Date,
		Type:     string(p.Type),
	}
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients := s.ledger.Search(r.URL.Query().Get("q"))
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	client, err := s.service.AddClient(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(client))
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, ok := s.ledger.Client(r.PathValue("id"))
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrNotFound, r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(client))
}

func (s *Server) handleRenameClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	client, err := s.service.UpdateClientName(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(client))
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteClient(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.ledger.Client(id); !ok {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrNotFound, id))
		return
	}
	txs := s.ledger.TransactionsFor(id)
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string     `json:"description"`
		Amount      core.Money `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.service.AddDebtTransaction(r.Context(), r.PathValue("id"), req.Description, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.ledger.Client(id); !ok {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrNotFound, id))
		return
	}
	payments := s.ledger.PaymentsFor(id)
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount core.Money `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := s.service.AddPartialPayment(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	payment, err := s.service.SettleClient(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (s *Server) handleReturnBottles(w http.ResponseWriter, r *http.Request) {
	var req map[string]int
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	returned := core.NewBottleCounts()
	for name, n := range req {
		cat := core.BottleCategory(name)
		if _, known := returned[cat]; !known {
			writeError(w, r, fmt.Errorf("%w: unknown bottle category %q", core.ErrInvalidAmount, name))
			return
		}
		returned[cat] = n
	}
	client, err := s.service.ReturnBottles(r.Context(), r.PathValue("id"), returned)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(client))
}

var errBadRequest = errors.New("bad request")

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateClient):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrParse),
		errors.Is(err, calc.ErrBadExpression),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRemoteFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
