package http

import (
	"net/http"
)

// handleDashboard serves the owner's totals and chart series. Responses
// are cached under the owner's current change version, so a write always
// makes the next fetch recompute.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if s.unauthorized(w, err) {
		return
	}

	key := s.dashCacheKey(owner)
	if payload, found := s.dashCache.Get(key); found {
		s.metrics.cacheHits.Add(1)
		writeJSON(w, http.StatusOK, payload)
		return
	}
	s.metrics.cacheMisses.Add(1)

	totals, err := s.ledger.Summary(r.Context(), owner)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "dashboard summary failed", "error", err)
		writeDomainError(w, err)
		return
	}

	payload := dashboardPayload{Totals: totals, Chart: totals.ChartSeries()}
	s.dashCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}
