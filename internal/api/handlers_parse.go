package api

import (
	"net/http"

	"github.com/dgallion1/syntaxd/internal/engine"
	"github.com/dgallion1/syntaxd/internal/forest"
)

type sentenceRequest struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
}

type tokensRequest struct {
	Tokens []engine.Token `json:"tokens"`
	Start  int            `json:"start"`
}

type treeResponse struct {
	Tree *forest.Tree `json:"tree"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.annotator.Ping()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":              s.annotator.Name(),
		"short_name":        s.annotator.ShortName(),
		"version":           s.annotator.Version(),
		"source_identifier": s.annotator.SourceIdentifier(),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	last := s.annotator.LastAnnotationTime()
	var millis int64
	if !last.IsZero() {
		millis = last.UnixMilli()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_annotation_time":    formatTime(last),
		"last_annotation_unix_ms": millis,
	})
}

func (s *Server) handleParseSentence(w http.ResponseWriter, r *http.Request) {
	var req sentenceRequest
	if !decodeJSON(w, r, s.cfg.Pipeline.MaxUploadBytes, &req) {
		return
	}
	tree, err := s.annotator.ParseSentence(r.Context(), req.Text, req.Start)
	if err != nil {
		writeAnnotationError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, treeResponse{Tree: tree})
}

func (s *Server) handleParseTokens(w http.ResponseWriter, r *http.Request) {
	var req tokensRequest
	if !decodeJSON(w, r, s.cfg.Pipeline.MaxUploadBytes, &req) {
		return
	}
	tree, err := s.annotator.ParseTokenizedSentence(r.Context(), req.Tokens, req.Start)
	if err != nil {
		writeAnnotationError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, treeResponse{Tree: tree})
}

func (s *Server) handleParseRecord(w http.ResponseWriter, r *http.Request) {
	var rec forest.Record
	if !decodeJSON(w, r, s.cfg.Pipeline.MaxUploadBytes, &rec) {
		return
	}
	f, err := s.annotator.ParseRecord(r.Context(), rec)
	if err != nil {
		writeAnnotationError(w, err, f)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
