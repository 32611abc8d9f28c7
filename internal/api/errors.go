package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/syntaxd/internal/annotate"
	"github.com/dgallion1/syntaxd/internal/forest"
)

type errorResponse struct {
	Error  string         `json:"error"`
	Kind   annotate.Kind  `json:"kind"`
	Forest *forest.Forest `json:"forest,omitempty"`
}

// writeAnnotationError maps an annotator failure onto a status code. Input
// rejections and missing parses are the caller's problem (422); anything
// else is ours (500). partial, when non-nil, carries the trees parsed before
// the failure.
func writeAnnotationError(w http.ResponseWriter, err error, partial *forest.Forest) {
	resp := errorResponse{Error: err.Error(), Kind: annotate.KindInternal, Forest: partial}
	var ae *annotate.Error
	if errors.As(err, &ae) {
		resp.Error = ae.Reason
		resp.Kind = ae.Kind
	}
	code := http.StatusUnprocessableEntity
	if resp.Kind == annotate.KindInternal {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
