package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/syntaxd/internal/annotate"
	"github.com/dgallion1/syntaxd/internal/boundary"
	"github.com/dgallion1/syntaxd/internal/forest"
	"github.com/dgallion1/syntaxd/internal/textract"
)

// RecordParser is the part of the annotator a worker needs.
type RecordParser interface {
	ParseRecord(ctx context.Context, rec forest.Record) (*forest.Forest, error)
}

// Worker processes a single annotation job.
type Worker struct {
	parser RecordParser
	log    *slog.Logger
	cfg    Config
}

func NewWorker(parser RecordParser, log *slog.Logger, cfg Config) *Worker {
	return &Worker{parser: parser, log: log, cfg: cfg}
}

// Process runs a job to completion. The job's status and result are updated
// in place; Process never returns an error.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "record_id", job.RecordID, "kind", job.Kind)
	defer job.releaseInput()

	var rec forest.Record
	switch job.Kind {
	case KindFile:
		r, err := w.recordFromFile(job)
		if err != nil {
			log.Error("extraction failed", "filename", job.Filename, "error", err)
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "extracting")
			return
		}
		rec = r
	default:
		rec = job.Record()
	}

	job.SetSentences(len(rec.View(w.cfg.SentenceView).Labels))
	job.SetStatus(StatusParsing, "parsing")

	f, err := w.parser.ParseRecord(ctx, rec)
	job.SetResult(f)
	if err != nil {
		log.Error("record annotation failed", "kind", annotate.KindOf(err), "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	for _, fail := range f.Failures {
		job.AddError(fmt.Sprintf("sentence %d: %s", fail.Sentence, fail.Reason))
	}
	log.Info("job complete", "trees", len(f.Trees), "failures", len(f.Failures))
	if len(f.Failures) > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// recordFromFile extracts text from the uploaded bytes and segments it with
// the rule-based boundary annotator.
func (w *Worker) recordFromFile(job *Job) (forest.Record, error) {
	job.SetStatus(StatusExtracting, "extracting")
	x, err := textract.ForFile(job.Filename, w.cfg.Extract)
	if err != nil {
		return forest.Record{}, err
	}
	text, err := x.Extract(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		return forest.Record{}, fmt.Errorf("extract: %w", err)
	}
	if w.cfg.FoldASCII {
		text = textract.FoldASCII(text)
	}
	if strings.TrimSpace(text) == "" {
		return forest.Record{}, fmt.Errorf("no extractable text in %s", job.Filename)
	}

	job.mu.Lock()
	job.ContentHash = ContentHashHex([]byte(text))
	job.mu.Unlock()

	return boundary.Record(job.RecordID, text, w.cfg.SentenceView, w.cfg.TokenView), nil
}
