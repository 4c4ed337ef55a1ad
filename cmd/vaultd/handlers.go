package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/feed"
	"custody-vault/internal/observability"
	"custody-vault/internal/vault"
)

// callerHeader carries the identity performing the operation. The
// service trusts its deployment perimeter for authentication; the vault
// enforces authorization.
const callerHeader = "X-Vault-Caller"

// Server holds the HTTP API state.
type Server struct {
	vault   *vault.Vault
	hub     *feed.Hub
	stores  *allStores
	started time.Time
	logger  *log.Logger
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("POST /v1/deposit", s.handleDeposit)
	mux.HandleFunc("POST /v1/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /v1/tokens/withdraw", s.handleWithdrawToken)
	mux.HandleFunc("POST /v1/tokens/batch-withdraw", s.handleBatchWithdraw)
	mux.HandleFunc("POST /v1/tokens/add", s.handleAddTokens)
	mux.HandleFunc("POST /v1/tokens/remove", s.handleRemoveToken)
	mux.HandleFunc("POST /v1/recover", s.handleRecover)
	mux.HandleFunc("POST /v1/pause", s.handlePause)
	mux.HandleFunc("POST /v1/daily-limit", s.handleDailyLimit)
	mux.HandleFunc("POST /v1/owner", s.handleTransferOwnership)

	mux.HandleFunc("GET /v1/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/tokens", s.handleTokens)
	mux.HandleFunc("GET /v1/tokens/balances", s.handleTokenBalances)
	mux.HandleFunc("GET /v1/state", s.handleState)
	mux.HandleFunc("GET /v1/events/recent", s.handleRecentEvents)
	mux.HandleFunc("GET /v1/outflow", s.handleOutflow)
	mux.Handle("GET /v1/events", s.hub)

	return mux
}

// ---- mutations ----

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender string `json:"sender"`
		Amount string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	sender, err := domain.ParseAddress(req.Sender)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	amount, ok := s.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	if err := s.vault.Deposit(r.Context(), sender, amount); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	amount, ok := s.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	if err := s.vault.Withdraw(r.Context(), caller, recipient, amount); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleWithdrawToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Token     string `json:"token"`
		Amount    string `json:"amount"`
		Recipient string `json:"recipient"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	token, err := domain.ParseTokenID(req.Token)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	amount, ok := s.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	if err := s.vault.WithdrawToken(r.Context(), caller, token, amount, recipient); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleBatchWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Tokens    []string `json:"tokens"`
		Amounts   []string `json:"amounts"`
		Recipient string   `json:"recipient"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	tokens := make([]domain.TokenID, len(req.Tokens))
	for i, raw := range req.Tokens {
		tokens[i], err = domain.ParseTokenID(raw)
		if err != nil {
			s.badRequest(w, err)
			return
		}
	}
	amounts := make([]decimal.Decimal, len(req.Amounts))
	for i, raw := range req.Amounts {
		var ok bool
		if amounts[i], ok = s.parseAmount(w, raw); !ok {
			return
		}
	}

	if err := s.vault.BatchWithdrawTokens(r.Context(), caller, tokens, amounts, recipient); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleAddTokens(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Tokens []string `json:"tokens"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	tokens := make([]domain.TokenID, len(req.Tokens))
	for i, raw := range req.Tokens {
		token, err := domain.ParseTokenID(raw)
		if err != nil {
			s.badRequest(w, err)
			return
		}
		tokens[i] = token
	}

	if err := s.vault.AddSupportedTokens(r.Context(), caller, tokens); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleRemoveToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	token, err := domain.ParseTokenID(req.Token)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	if err := s.vault.RemoveSupportedToken(r.Context(), caller, token); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	token, err := domain.ParseTokenID(req.Token)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	if err := s.vault.RecoverToken(r.Context(), caller, token); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.vault.SetPaused(r.Context(), caller, req.Active); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleDailyLimit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Limit string `json:"limit"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	limit, err := decimal.NewFromString(req.Limit)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	if err := s.vault.SetDailyLimit(r.Context(), caller, limit); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		NewOwner string `json:"new_owner"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	newOwner, err := domain.ParseAddress(req.NewOwner)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	if err := s.vault.TransferOwnership(r.Context(), caller, newOwner); err != nil {
		s.vaultError(w, err)
		return
	}
	s.ok(w)
}

// ---- reads ----

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.vault.Balance(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"balance": balance.String()})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{"tokens": s.vault.SupportedTokens()})
}

func (s *Server) handleTokenBalances(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.vault.AllTokenBalances(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"holdings": holdings})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.vault.Snapshot()
	s.writeJSON(w, map[string]any{
		"vault_id":         state.VaultID,
		"owner":            state.Owner,
		"paused":           state.Paused,
		"daily_limit":      state.DailyLimit.String(),
		"spent_today":      state.SpentToday.String(),
		"supported_tokens": state.SupportedTokens,
	})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.badRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	events, err := s.stores.events.GetRecent(r.Context(), s.vault.Snapshot().VaultID, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"events": events})
}

func (s *Server) handleOutflow(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt64(r, "start", 0)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	end, err := queryInt64(r, "end", time.Now().UnixMilli())
	if err != nil {
		s.badRequest(w, err)
		return
	}

	aggs, err := s.stores.transfers.OutflowByDay(r.Context(), s.vault.Snapshot().VaultID, start, end)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"outflow": aggs})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	VaultID     string `json:"vault_id"`
	Paused      bool   `json:"paused"`
	FeedClients int    `json:"feed_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.vault.Snapshot()
	s.writeJSON(w, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		VaultID:     state.VaultID,
		Paused:      state.Paused,
		FeedClients: s.hub.ClientCount(),
	})
}

// ---- helpers ----

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	raw := r.Header.Get(callerHeader)
	if raw == "" {
		s.writeError(w, http.StatusUnauthorized, "missing_caller", callerHeader+" header is required")
		return domain.ZeroAddress, false
	}
	caller, err := domain.ParseAddress(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_caller", err.Error())
		return domain.ZeroAddress, false
	}
	return caller, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func (s *Server) parseAmount(w http.ResponseWriter, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a decimal string")
		return decimal.Zero, false
	}
	return amount, true
}

func (s *Server) ok(w http.ResponseWriter) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Printf("internal error: %v", err)
	s.writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

// vaultError maps a custody failure onto an HTTP status.
func (s *Server) vaultError(w http.ResponseWriter, err error) {
	reason := vault.Reason(err)

	var status int
	switch reason {
	case "unauthorized":
		status = http.StatusForbidden
	case "paused", "reentrant_call", "insufficient_funds",
		"insufficient_token_balance", "nothing_to_recover":
		status = http.StatusConflict
	case "invalid_recipient", "invalid_token", "invalid_amount", "length_mismatch":
		status = http.StatusBadRequest
	case "token_not_supported":
		status = http.StatusNotFound
	case "quota_exceeded":
		status = http.StatusTooManyRequests
	case "transfer_failed", "token_transfer_failed":
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		s.logger.Printf("unmapped vault error: %v", err)
	}

	s.writeError(w, status, reason, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  reason,
		"detail": message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func queryInt64(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}
