package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/syntaxd/internal/forest"
)

// JobStatus represents the state of an annotation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusParsing    JobStatus = "parsing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// JobKind says what a job carries.
type JobKind string

const (
	KindRecord JobKind = "record"
	KindFile   JobKind = "file"
)

// Job tracks one asynchronous record or file annotation.
type Job struct {
	mu sync.Mutex

	ID       string  `json:"job_id"`
	Kind     JobKind `json:"kind"`
	RecordID string  `json:"record_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	record   forest.Record
	result   *forest.Forest
	errors   []string
}

// Progress tracks sentence counts for a job.
type Progress struct {
	Sentences int      `json:"sentences"`
	Trees     int      `json:"trees"`
	Failures  int      `json:"failures"`
	Errors    []string `json:"errors"`
}

// NewRecordJob queues an already segmented record.
func NewRecordJob(rec forest.Record) *Job {
	j := newJob(KindRecord)
	j.RecordID = rec.ID
	if j.RecordID == "" {
		j.RecordID = j.ID
		rec.ID = j.ID
	}
	j.record = rec
	j.ContentHash = ContentHashHex([]byte(rec.RawText))
	return j
}

// NewFileJob queues an uploaded document. recordID defaults to the job ID.
func NewFileJob(filename, recordID string, data []byte) *Job {
	j := newJob(KindFile)
	j.Filename = filename
	j.RecordID = recordID
	if j.RecordID == "" {
		j.RecordID = j.ID
	}
	j.fileData = data
	return j
}

func newJob(kind JobKind) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetSentences records how many sentences the record holds.
func (j *Job) SetSentences(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sentences = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the forest and updates tree and failure counts. A nil
// forest clears the result.
func (j *Job) SetResult(f *forest.Forest) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = f
	j.Progress.Trees, j.Progress.Failures = 0, 0
	if f != nil {
		j.Progress.Trees = len(f.Trees) - len(f.Failures)
		j.Progress.Failures = len(f.Failures)
	}
	j.UpdatedAt = time.Now()
}

// Result returns the forest produced by the job, if any.
func (j *Job) Result() *forest.Forest {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Record returns the record of a record job.
func (j *Job) Record() forest.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseInput drops the uploaded bytes once they are no longer needed.
func (j *Job) releaseInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
	j.record = forest.Record{}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string         `json:"job_id"`
	Kind        JobKind        `json:"kind"`
	RecordID    string         `json:"record_id"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase"`
	Filename    string         `json:"filename,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	Progress    Progress       `json:"progress"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Forest      *forest.Forest `json:"forest,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		RecordID:    j.RecordID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress: Progress{
			Sentences: j.Progress.Sentences,
			Trees:     j.Progress.Trees,
			Failures:  j.Progress.Failures,
			Errors:    errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Forest:    j.result,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
