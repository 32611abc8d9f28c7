package api

import (
	"net/http"
)

func (s *Server) handleParserStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "parser stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":      s.annotator.SourceIdentifier(),
		"stats":       s.stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
