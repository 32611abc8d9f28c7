package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/pipeline"
	"github.com/dgallion1/syntaxd/internal/textract"
)

func (s *Server) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	var rec forest.Record
	if !decodeJSON(w, r, s.cfg.Pipeline.MaxUploadBytes, &rec) {
		return
	}
	s.submit(w, pipeline.NewRecordJob(rec))
}

func (s *Server) handleSubmitFile(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Pipeline.MaxUploadBytes
	// Limit total request size; the extra 1MB covers form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !textract.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > maxBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes), http.StatusRequestEntityTooLarge)
		return
	}

	s.submit(w, pipeline.NewFileJob(filename, r.FormValue("record_id"), data))
}

func (s *Server) submit(w http.ResponseWriter, job *pipeline.Job) {
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusServiceUnavailable
		if !errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusInternalServerError
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    job.ID,
		"record_id": job.RecordID,
		"status":    pipeline.StatusQueued,
		"poll_url":  "/api/jobs/" + job.ID,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
