package main

import (
	"net/http"
)

// handleMetrics returns a snapshot of the metrics registry
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.writeJSON(w, http.StatusOK, s.registry.Snapshot())
	}
}
