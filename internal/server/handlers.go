package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microtrader/internal/ledger"
	"microtrader/types"
)

// tradeRequest is the body of buy and sell requests.
type tradeRequest struct {
	Amount int64       `json:"amount"`
	Quote  types.Quote `json:"quote"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "microtrader",
	})
}

// handlePortfolio returns the current cash and share positions.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Snapshot())
}

// handleEvaluate returns the overall portfolio value as a bare number.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	value := s.ledger.Evaluate()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(value.String())); err != nil {
		s.log.Error().Err(err).Msg("Failed to write evaluation response")
	}
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := s.ledger.Buy(req.Amount, req.Quote)
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := s.ledger.Sell(req.Amount, req.Quote)
	if err != nil {
		s.writeTradeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleQuotes returns the latest observed quote for every symbol.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.LatestQuotes())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	quote, ok := s.ledger.LatestQuote(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

// handleOperations returns the most recent audited trades.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit journal is not configured")
		return
	}

	ops, err := s.journal.LastOperations(r.Context(), 10)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load operations")
		s.writeError(w, http.StatusInternalServerError, "failed to load operations")
		return
	}
	s.writeJSON(w, http.StatusOK, ops)
}

// writeTradeError maps ledger errors to HTTP status codes.
func (s *Server) writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.InvalidAmountErr), errors.Is(err, ledger.InvalidQuoteErr):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.InsufficientFundsErr), errors.Is(err, ledger.InsufficientSharesErr):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("Trade failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
