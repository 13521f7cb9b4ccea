// internal/batch/types.go - Batch processing types
package batch

import (
	"time"

	"go.uber.org/atomic"

	"github.com/valpere/aoi_to_mbtiles/internal/manifest"
	"github.com/valpere/aoi_to_mbtiles/internal/tile"
	"github.com/valpere/aoi_to_mbtiles/pkg/tilemath"
)

// Job represents one fetch run over a manifest
type Job struct {
	ID          string           `json:"id"`
	Entries     []manifest.Entry `json:"-"`
	Config      *JobConfig       `json:"config"`
	Status      JobStatus        `json:"status"`
	Progress    *JobProgress     `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       error            `json:"-"`
}

// JobConfig contains per-run options of a fetch job
type JobConfig struct {
	Resume       bool              `json:"resume"`
	ResidualPath string            `json:"residual_path"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// JobStatus represents the current status of a fetch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobProgress tracks the progress of a job. Counters are updated by workers concurrently.
type JobProgress struct {
	TotalTiles     atomic.Int64
	ProcessedTiles atomic.Int64
	SuccessTiles   atomic.Int64
	EmptyTiles     atomic.Int64
	FailedTiles    atomic.Int64
	BytesWritten   atomic.Int64
	StartTime      time.Time
}

// WorkItem represents a single tile request within a pass
type WorkItem struct {
	Request *tile.TileRequest `json:"request"`
	ItemID  int               `json:"item_id"`
	Pass    tile.Pass         `json:"pass"`
}

// WorkResult represents the result of processing a work item
type WorkResult struct {
	Item     *WorkItem         `json:"item"`
	Result   *tile.FetchResult `json:"result"`
	Written  int               `json:"written"`
	Duration time.Duration     `json:"duration"`
}

// PassResult summarizes one pass over a work list
type PassResult struct {
	Settings     tile.PassSettings `json:"settings"`
	Total        int               `json:"total"`
	SuccessCount int               `json:"success_count"`
	EmptyCount   int               `json:"empty_count"`
	FailureCount int               `json:"failure_count"`
	Duration     time.Duration     `json:"duration"`
}

// Summary is the outcome of a complete two-pass run
type Summary struct {
	JobID        string        `json:"job_id"`
	Total        int           `json:"total"`
	Skipped      int           `json:"skipped"`
	Fetched      int           `json:"fetched"`
	Empty        int           `json:"empty"`
	Residual     int           `json:"residual"`
	ResidualPath string        `json:"residual_path,omitempty"`
	Passes       []*PassResult `json:"passes"`
	Duration     time.Duration `json:"duration"`
}

// PendingRecord is a tile whose last attempt failed and awaits a retry
type PendingRecord struct {
	Entry    manifest.Entry
	Outcome  tile.Outcome
	Attempts int
	Err      string
}

// PendingStore is the durable record of tiles awaiting a retry
type PendingStore interface {
	MarkPending(entry manifest.Entry, outcome tile.Outcome, cause error) error
	Resolve(addr tilemath.TileAddress) error
	Pending() ([]PendingRecord, error)
	Count() (int, error)
	Reset() error
}

// ProgressReporter receives pass and tile level progress
type ProgressReporter interface {
	StartPass(settings tile.PassSettings, total int)
	Advance(result *WorkResult)
	FinishPass(result *PassResult)
}

// FetcherSource supplies pass settings and fetchers; *tile.FetcherFactory implements it
type FetcherSource interface {
	Settings(pass tile.Pass, n int) tile.PassSettings
	ForPass(settings tile.PassSettings) tile.Fetcher
}

// NewJob creates a new fetch job
func NewJob(id string, entries []manifest.Entry, config *JobConfig) *Job {
	if config == nil {
		config = NewJobConfig()
	}
	return &Job{
		ID:        id,
		Entries:   entries,
		Config:    config,
		Status:    JobStatusPending,
		Progress:  NewJobProgress(),
		CreatedAt: time.Now(),
	}
}

// NewJobConfig creates a new job configuration with default values
func NewJobConfig() *JobConfig {
	return &JobConfig{}
}

// NewJobProgress creates a new job progress tracker
func NewJobProgress() *JobProgress {
	return &JobProgress{StartTime: time.Now()}
}

// NewWorkItem creates a new work item
func NewWorkItem(request *tile.TileRequest, itemID int, pass tile.Pass) *WorkItem {
	return &WorkItem{
		Request: request,
		ItemID:  itemID,
		Pass:    pass,
	}
}

// IsComplete returns true if the job has finished (successfully or with error)
func (j *Job) IsComplete() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// CalculateProgress calculates the completion percentage
func (p *JobProgress) CalculateProgress() float64 {
	total := p.TotalTiles.Load()
	if total == 0 {
		return 0
	}
	return float64(p.ProcessedTiles.Load()) / float64(total) * 100
}

// Throughput returns processed tiles per second since the job started
func (p *JobProgress) Throughput() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.ProcessedTiles.Load()) / elapsed
}

// String returns a string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}
