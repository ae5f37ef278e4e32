package pipeline

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/proofchunk/internal/chunker"
	"github.com/dgallion1/proofchunk/internal/page"
)

// JobStatus represents the state of a chunking job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusValidating JobStatus = "validating"
	StatusExtracting JobStatus = "extracting"
	StatusWriting    JobStatus = "writing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one uploaded document through the pipeline.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Limits  chunker.Limits `json:"-"`
	OCRLang string         `json:"ocr_lang"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Dir holds input.pdf, output/chunks and logs for this job.
	Dir string `json:"-"`

	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages int      `json:"total_pages"`
	PagesDone  int      `json:"pages_done"`
	TextPages  int      `json:"text_pages"`
	OCRPages   int      `json:"ocr_pages"`
	ErrorPages int      `json:"error_pages"`
	Chunks     int      `json:"chunks"`
	Errors     []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
	log  *slog.Logger
}

func NewJobStore(ttl time.Duration, log *slog.Logger) *JobStore {
	if log == nil {
		log = slog.Default()
	}
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		log:  log,
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

// Cleanup removes finished jobs older than the TTL together with their files.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	var expired []*Job
	now := time.Now()
	for id, job := range s.jobs {
		snap := job.Snapshot()
		done := snap.Status == StatusCompleted || snap.Status == StatusFailed
		if done && now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	s.mu.Unlock()

	for _, job := range expired {
		if job.Dir == "" {
			continue
		}
		if err := os.RemoveAll(job.Dir); err != nil {
			s.log.Warn("remove job dir", "job_id", job.ID, "dir", job.Dir, "error", err)
		}
	}
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
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

// RecordPage folds one extracted page into the progress counters.
func (j *Job) RecordPage(done, total int, rec page.Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = total
	j.Progress.PagesDone = done
	switch rec.Source {
	case page.SourceText:
		j.Progress.TextPages++
	case page.SourceOCR:
		j.Progress.OCRPages++
	case page.SourceError:
		j.Progress.ErrorPages++
	}
	j.UpdatedAt = time.Now()
}

// SetChunks records how many chunk files were written.
func (j *Job) SetChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Chunks = n
	j.UpdatedAt = time.Now()
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	MaxWords    int       `json:"max_words"`
	MaxPages    int       `json:"max_pages"`
	OCRLang     string    `json:"ocr_lang"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		Phase:       j.Phase,
		MaxWords:    j.Limits.MaxWords,
		MaxPages:    j.Limits.MaxPages,
		OCRLang:     j.OCRLang,
		ContentHash: j.ContentHash,
		Progress:    p,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
