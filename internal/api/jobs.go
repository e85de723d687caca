package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forTEXT/catma-go/internal/convert"
	"github.com/forTEXT/catma-go/internal/fileutil"
	"github.com/forTEXT/catma-go/internal/logging"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobRequest describes an asynchronous conversion of a file under the
// server's data directory.
type JobRequest struct {
	// Source is the input file, relative to the data directory.
	Source string `json:"source"`
	// Format is the input format id, empty for auto detection.
	Format string `json:"format,omitempty"`
	Author string `json:"author,omitempty"`
	Title  string `json:"title,omitempty"`
	// SourceText is the annotated source text file, relative to the
	// data directory.
	SourceText       string `json:"source_text,omitempty"`
	SkipBadSentences bool   `json:"skip_bad_sentences,omitempty"`
	// Output is the output file, relative to the data directory.
	// Defaults to the source name with an .xml extension.
	Output string `json:"output,omitempty"`
	// Import additionally imports the collection into the store.
	Import bool `json:"import,omitempty"`
}

// JobResult is the outcome of a completed job.
type JobResult struct {
	Output       string `json:"output"`
	Format       string `json:"format"`
	Annotations  int    `json:"annotations"`
	CollectionID string `json:"collection_id,omitempty"`
	SHA256       string `json:"sha256"`
	Duration     string `json:"duration"`
}

// Job represents an asynchronous conversion job.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	CompletedAt string     `json:"completed_at,omitempty"`
	Request     JobRequest `json:"request"`

	ctx    context.Context
	cancel context.CancelFunc
}

// snapshot returns a copy safe to serialize after the store lock is
// released. The running job keeps being mutated through Update, so
// handlers must never marshal the live pointer.
func (j *Job) snapshot() Job {
	copied := *j
	if j.Result != nil {
		result := *j.Result
		copied.Result = &result
	}
	copied.ctx = nil
	copied.cancel = nil
	return copied
}

// JobStore manages conversion jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create creates a pending job.
func (s *JobStore) Create(req JobRequest) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)
	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.jobs[job.ID] = job
	return job
}

// Get retrieves a snapshot of a job by ID.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return job.snapshot(), true
}

// List returns snapshots of all jobs.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.snapshot())
	}
	return jobs
}

// Update updates a job's status and progress.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *JobResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = job.UpdatedAt
	}
	return nil
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	job.CompletedAt = job.UpdatedAt
	return nil
}

// runJob executes a conversion job in a goroutine.
func (s *Server) runJob(job *Job) {
	go func() {
		start := time.Now()
		progress := 10
		s.jobs.Update(job.ID, JobStatusRunning, progress, nil, "")
		logging.JobEvent(job.ID, "running", "source", job.Request.Source)
		s.hub.Progress("job", "converting", "Converting "+job.Request.Source, progress)

		fail := func(err error) {
			s.jobs.Update(job.ID, JobStatusFailed, 100, nil, err.Error())
			logging.JobEvent(job.ID, "failed", "error", err.Error())
			s.hub.Failure("job", err.Error())
		}
		cancelled := func() bool {
			select {
			case <-job.ctx.Done():
				s.jobs.Update(job.ID, JobStatusCancelled, progress, nil, "Job cancelled")
				logging.JobEvent(job.ID, "cancelled")
				return true
			default:
				return false
			}
		}

		opts := convert.Options{
			Format:           job.Request.Format,
			Author:           job.Request.Author,
			Title:            job.Request.Title,
			SkipBadSentences: job.Request.SkipBadSentences,
		}
		if job.Request.SourceText != "" {
			safe, err := ValidatePath(s.cfg.DataDir, job.Request.SourceText)
			if err != nil {
				fail(err)
				return
			}
			opts.SourceText = filepath.Join(s.cfg.DataDir, safe)
		}

		result, err := s.converter.ConvertFile(filepath.Join(s.cfg.DataDir, job.Request.Source), opts)
		if err != nil {
			fail(err)
			return
		}
		if cancelled() {
			return
		}
		progress = 60
		s.jobs.Update(job.ID, JobStatusRunning, progress, nil, "")

		outputPath := filepath.Join(s.cfg.DataDir, job.Request.Output)
		if err := fileutil.WriteFileAtomic(outputPath, result.Data, 0o644); err != nil {
			fail(err)
			return
		}
		if cancelled() {
			os.Remove(outputPath)
			return
		}

		jobResult := &JobResult{
			Output:   job.Request.Output,
			Format:   result.Format,
			SHA256:   result.Fingerprint.SHA256,
			Duration: time.Since(start).String(),
		}
		if result.Collection != nil {
			jobResult.Annotations = len(result.Collection.Annotations)
		}

		if job.Request.Import {
			if result.Collection == nil {
				fail(fmt.Errorf("conversion was served from cache, cannot import"))
				return
			}
			progress = 80
			s.jobs.Update(job.ID, JobStatusRunning, progress, nil, "")
			id, err := s.store.ImportCollection(job.ctx, result.Collection)
			if err != nil {
				fail(err)
				return
			}
			s.listings.Invalidate()
			jobResult.CollectionID = id
		}

		s.jobs.Update(job.ID, JobStatusCompleted, 100, jobResult, "")
		logging.JobEvent(job.ID, "completed", "output", jobResult.Output)
		s.hub.Complete("job", "Job completed", map[string]any{
			"job_id": job.ID,
			"output": jobResult.Output,
		})
	}()
}

// handleJobs handles POST /jobs and GET /jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, jobs, len(jobs))
	case http.MethodPost:
		s.createJobHandler(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if req.Source == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "source is required")
		return
	}
	if _, err := ValidatePath(s.cfg.DataDir, req.Source); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", fmt.Sprintf("Invalid source path: %v", err))
		return
	}
	if req.Output == "" {
		req.Output = outputName(req.Source)
	}
	if _, err := ValidatePath(s.cfg.DataDir, req.Output); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", fmt.Sprintf("Invalid output path: %v", err))
		return
	}

	job := s.jobs.Create(req)
	logging.JobEvent(job.ID, "created", "source", req.Source)
	// snapshot before the worker goroutine starts mutating the job
	created := job.snapshot()
	s.runJob(job)
	respond(w, http.StatusCreated, created)
}

// handleJobByID handles GET /jobs/{id} and DELETE /jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, exists := s.jobs.Get(id)
		if !exists {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			if strings.Contains(err.Error(), "not found") {
				respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

// outputName derives the default output name from the source name.
func outputName(source string) string {
	return fileutil.BaseName(source) + ".xml"
}
