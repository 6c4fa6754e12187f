package types

import (
	"fmt"
	"time"
)

// Pattern is one of the ten canonical defect tags. The set is a closed
// sum: stores reject anything else at the persistence boundary.
type Pattern string

const (
	PatternSyntaxError       Pattern = "syntax_error"
	PatternHallucinated      Pattern = "hallucinated_object"
	PatternIncomplete        Pattern = "incomplete_generation"
	PatternSillyMistake      Pattern = "silly_mistake"
	PatternWrongAttribute    Pattern = "wrong_attribute"
	PatternWrongInputType    Pattern = "wrong_input_type"
	PatternNPC               Pattern = "non_prompted_consideration"
	PatternPromptBiased      Pattern = "prompt_biased_code"
	PatternMissingCornerCase Pattern = "missing_corner_case"
	PatternMisinterpretation Pattern = "misinterpretation"
)

// AllPatterns lists the taxonomy in catalog order.
var AllPatterns = []Pattern{
	PatternSyntaxError,
	PatternHallucinated,
	PatternIncomplete,
	PatternSillyMistake,
	PatternWrongAttribute,
	PatternWrongInputType,
	PatternNPC,
	PatternPromptBiased,
	PatternMissingCornerCase,
	PatternMisinterpretation,
}

// Valid reports whether p is one of the ten canonical tags.
func (p Pattern) Valid() bool {
	for _, known := range AllPatterns {
		if p == known {
			return true
		}
	}
	return false
}

// DetectionStage identifies which layer produced a finding. The
// classifier is the only producer of StageComposite.
type DetectionStage string

const (
	StageStatic     DetectionStage = "static"
	StageDynamic    DetectionStage = "dynamic"
	StageLinguistic DetectionStage = "linguistic"
	StageComposite  DetectionStage = "composite"
)

// AnalysisStatus transitions processing -> complete exactly once.
type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "processing"
	StatusComplete   AnalysisStatus = "complete"
)

// Finding is the unit of output: one classified defect.
type Finding struct {
	ID             string         `json:"id,omitempty" db:"id"`
	AnalysisID     string         `json:"analysis_id,omitempty" db:"analysis_id"`
	Pattern        Pattern        `json:"pattern" db:"pattern"`
	Severity       int            `json:"severity" db:"severity"`
	Confidence     float64        `json:"confidence" db:"confidence"`
	Description    string         `json:"description" db:"description"`
	Location       string         `json:"location,omitempty" db:"location"`
	FixHint        string         `json:"fix_hint,omitempty" db:"fix_hint"`
	DetectionStage DetectionStage `json:"detection_stage" db:"detection_stage"`
}

// SeverityLabel maps a 0-10 severity to its band.
func SeverityLabel(severity int) string {
	switch {
	case severity >= 8:
		return "critical"
	case severity >= 6:
		return "high"
	case severity >= 4:
		return "medium"
	case severity >= 1:
		return "low"
	default:
		return "none"
	}
}

// StageLog records one pipeline stage's outcome for an analysis.
type StageLog struct {
	ID         string  `json:"-" db:"id"`
	AnalysisID string  `json:"-" db:"analysis_id"`
	Stage      string  `json:"stage" db:"stage_name"`
	Success    bool    `json:"success" db:"success"`
	Error      string  `json:"error,omitempty" db:"error"`
	ElapsedS   float64 `json:"elapsed_seconds" db:"elapsed_s"`
}

// LinguisticExtras is the structured dump of the four linguistic
// detectors, reported alongside findings.
type LinguisticExtras struct {
	IntentMatchScore   float64  `json:"intent_match_score"`
	UnpromptedFeatures []string `json:"unprompted_features"`
	MissingFeatures    []string `json:"missing_features"`
	HardcodedValues    []string `json:"hardcoded_values"`
}

// Analysis is the persistent aggregate for one (prompt, code) submission.
type Analysis struct {
	ID              string            `json:"analysis_id" db:"id"`
	Prompt          string            `json:"prompt" db:"prompt"`
	Code            string            `json:"code" db:"code"`
	Language        string            `json:"language" db:"language"`
	Status          AnalysisStatus    `json:"status" db:"status"`
	HasBugs         bool              `json:"has_bugs" db:"has_bugs"`
	OverallSeverity int               `json:"overall_severity" db:"overall_severity"`
	Confidence      float64           `json:"confidence" db:"confidence"`
	Summary         string            `json:"summary" db:"summary"`
	Findings        []Finding         `json:"findings"`
	StageLogs       []StageLog        `json:"stage_logs"`
	Linguistic      *LinguisticExtras `json:"linguistic_analysis,omitempty"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// Recompute re-derives the aggregate invariants from the finding list:
// has_bugs iff findings is non-empty, overall severity is the max,
// confidence is the mean.
func (a *Analysis) Recompute() {
	a.HasBugs = len(a.Findings) > 0
	a.OverallSeverity = 0
	a.Confidence = 0
	if len(a.Findings) == 0 {
		return
	}
	total := 0.0
	for _, f := range a.Findings {
		if f.Severity > a.OverallSeverity {
			a.OverallSeverity = f.Severity
		}
		total += f.Confidence
	}
	a.Confidence = total / float64(len(a.Findings))
}

// Feedback is a user rating attached to a completed analysis.
type Feedback struct {
	ID         string    `json:"id" db:"id"`
	AnalysisID string    `json:"analysis_id" db:"analysis_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	Helpful    bool      `json:"helpful" db:"helpful"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Validate checks feedback bounds before persistence.
func (f Feedback) Validate() error {
	if f.AnalysisID == "" {
		return fmt.Errorf("feedback requires an analysis id")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", f.Rating)
	}
	return nil
}

// Job is a queued unit of background work. The linguistic phase of an
// analysis is the only job type the pipeline produces today.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AnalysisID string    `json:"analysis_id"`
	Prompt     string    `json:"prompt"`
	Code       string    `json:"code"`
	Status     string    `json:"status"`
	Retries    int       `json:"retries"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const JobTypeLinguistic = "linguistic"

// WorkerStatus is a snapshot of one background worker.
type WorkerStatus struct {
	ID           string    `json:"id"`
	Hostname     string    `json:"hostname"`
	Status       string    `json:"status"`
	CurrentJob   string    `json:"current_job,omitempty"`
	JobsComplete int       `json:"jobs_complete"`
	LastPing     time.Time `json:"last_ping"`
}

// PatternInfo is a catalog entry served by the patterns endpoint.
type PatternInfo struct {
	Pattern       Pattern        `json:"pattern"`
	Name          string         `json:"name"`
	Stage         DetectionStage `json:"stage"`
	SeverityRange string         `json:"severity_range"`
	Description   string         `json:"description"`
	Example       string         `json:"example"`
}
