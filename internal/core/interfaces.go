package core

import (
	"context"
	"time"

	"github.com/codeguard/codeguard/pkg/types"
)

// AnalysisStore persists analyses and their child records. The
// orchestrator is the single writer per id; readers poll freely.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, analysis *types.Analysis) error
	CompleteAnalysis(ctx context.Context, analysis *types.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*types.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]*types.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error

	SaveFeedback(ctx context.Context, fb *types.Feedback) error
	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}

// Stats aggregates stored analyses for the statistics endpoint.
type Stats struct {
	TotalAnalyses    int                       `json:"total_analyses"`
	TotalFindings    int                       `json:"total_findings"`
	AnalysesWithBugs int                       `json:"analyses_with_bugs"`
	PatternFrequency map[types.Pattern]int     `json:"pattern_frequency"`
	AvgSeverity      map[types.Pattern]float64 `json:"avg_severity"`
	AvgConfidence    map[types.Pattern]float64 `json:"avg_confidence"`
	StageCounts      map[string]int            `json:"detection_stages"`
	StageSuccessRate map[string]float64        `json:"stage_success_rate"`
	StageAvgElapsedS map[string]float64        `json:"stage_avg_elapsed_s"`
	FeedbackCount    int                       `json:"feedback_count"`
}

// JobQueue carries linguistic-phase jobs from the request handler to
// the worker pool.
type JobQueue interface {
	Push(ctx context.Context, job *types.Job) error
	Pop(ctx context.Context, workerID string) (*types.Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, reason string) error
	Close() error
}

// Worker consumes jobs until its context is cancelled.
type Worker interface {
	ID() string
	Start(ctx context.Context) error
	Stop() error
	Status() *types.WorkerStatus
}

// WorkerPool manages a fixed set of workers.
type WorkerPool interface {
	Start(ctx context.Context, workers int) error
	Stop() error
	Status() []*types.WorkerStatus
}

// ExecResult is the observable outcome of one sandbox run.
type ExecResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	TimedOut   bool
	Skipped    bool
	SkipReason string
	ParseError bool
	Backend    string
	Elapsed    time.Duration
}

// SandboxExecutor runs untrusted source in an isolated process with
// wall, memory, and network limits.
type SandboxExecutor interface {
	Run(ctx context.Context, source string, stdin string) (*ExecResult, error)
	Backend() string
}

// Reasoner delivers a packaged question to an external language model
// and returns the raw text reply. Implementations try providers in
// order with retry; an error means every provider failed and the
// caller must fall back.
type Reasoner interface {
	Ask(ctx context.Context, question string) (string, error)
	Enabled() bool
}
