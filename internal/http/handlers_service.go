package http

import (
	"net/http"

	"fincontrol/internal/core"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	services, err := s.ledger.Services(r.Context(), owner)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list services failed", "error", err)
		writeDomainError(w, err)
		return
	}

	search := sanitizeInput(r.URL.Query().Get("search"))
	status := sanitizeInput(r.URL.Query().Get("status"))
	services = core.FilterServices(services, search, status)

	if services == nil {
		services = []core.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	var svc core.Service
	if !decodeBody(w, r, &svc) {
		return
	}
	svc.Client = sanitizeInput(svc.Client)
	svc.Description = sanitizeInput(svc.Description)

	created, err := s.ledger.AddService(r.Context(), owner, svc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	var svc core.Service
	if !decodeBody(w, r, &svc) {
		return
	}
	svc.ID = r.PathValue("id")
	svc.Client = sanitizeInput(svc.Client)
	svc.Description = sanitizeInput(svc.Description)

	updated, err := s.ledger.UpdateService(r.Context(), owner, svc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	if err := s.ledger.DeleteService(r.Context(), owner, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
