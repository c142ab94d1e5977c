package http

import (
	"net/http"

	"fincontrol/internal/core"
)

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	withdrawals, err := s.ledger.Withdrawals(r.Context(), owner)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list withdrawals failed", "error", err)
		writeDomainError(w, err)
		return
	}

	search := sanitizeInput(r.URL.Query().Get("search"))
	category := sanitizeInput(r.URL.Query().Get("category"))
	withdrawals = core.FilterWithdrawals(withdrawals, search, category)

	if withdrawals == nil {
		withdrawals = []core.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, withdrawals)
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	var wd core.Withdrawal
	if !decodeBody(w, r, &wd) {
		return
	}
	wd.Description = sanitizeInput(wd.Description)

	created, err := s.ledger.AddWithdrawal(r.Context(), owner, wd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// No update handler: a wrong withdrawal is deleted and re-added.
func (s *Server) handleDeleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	if err := s.ledger.DeleteWithdrawal(r.Context(), owner, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
