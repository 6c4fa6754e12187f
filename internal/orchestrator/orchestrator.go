// Package orchestrator sequences the analysis pipeline: static and
// dynamic run synchronously and return a preliminary record; the
// linguistic stage completes in the background and performs the
// record's single completion update.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codeguard/codeguard/internal/classifier"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/dynamic"
	"github.com/codeguard/codeguard/internal/explainer"
	"github.com/codeguard/codeguard/internal/linguistic"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/internal/static"
	"github.com/codeguard/codeguard/internal/telemetry"
	"github.com/codeguard/codeguard/pkg/types"
)

// linguisticBudget bounds the whole background stage: four detectors,
// each with at most one outbound model request chain.
const linguisticBudget = 120 * time.Second

// phaseSignals carries Phase A's raw detector output to Phase B. The
// entry lives in the process-local in-progress set; its loss on
// restart surfaces as a stale processing status, which callers
// tolerate via their poll timeout.
type phaseSignals struct {
	static  *static.Result
	dynamic *dynamic.Result
}

// Orchestrator owns analysis records during creation and the single
// completion update.
type Orchestrator struct {
	store      core.AnalysisStore
	queue      core.JobQueue
	staticAn   *static.Analyzer
	dynamicAn  *dynamic.Analyzer
	linguistic *linguistic.Analyzer
	telemetry  telemetry.Telemetry
	log        *logger.Logger

	inProgress *progressSet
}

func New(
	store core.AnalysisStore,
	queue core.JobQueue,
	staticAn *static.Analyzer,
	dynamicAn *dynamic.Analyzer,
	linguisticAn *linguistic.Analyzer,
	tel telemetry.Telemetry,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		queue:      queue,
		staticAn:   staticAn,
		dynamicAn:  dynamicAn,
		linguistic: linguisticAn,
		telemetry:  tel,
		log:        log.WithComponent("orchestrator"),
		inProgress: newProgressSet(),
	}
}

// Analyze is Phase A: parse, run the static and dynamic stages, store
// a preliminary record with status=processing, enqueue Phase B, and
// return the record. Persistence failure is fatal to the request; no
// partial records are written.
func (o *Orchestrator) Analyze(ctx context.Context, prompt, code string) (*types.Analysis, error) {
	start := time.Now()
	ctx, span := o.log.StartOperation(ctx, "orchestrator.Analyze",
		"prompt_length", len(prompt),
		"code_length", len(code),
	)
	var retErr error
	defer func() { o.log.FinishOperation(ctx, span, "orchestrator.Analyze", start, retErr) }()

	analysis := &types.Analysis{
		Prompt:   prompt,
		Code:     code,
		Language: "python",
		Status:   types.StatusProcessing,
	}

	// Empty code short-circuits: nothing to analyze, nothing pending.
	if strings.TrimSpace(code) == "" {
		analysis.Status = types.StatusComplete
		analysis.Summary = "No code was submitted; there is nothing to analyze."
		analysis.Findings = []types.Finding{}
		if err := o.store.SaveAnalysis(ctx, analysis); err != nil {
			retErr = fmt.Errorf("failed to persist analysis: %w", err)
			return nil, retErr
		}
		return analysis, nil
	}

	signals := &phaseSignals{}

	staticStart := time.Now()
	staticRes, staticErr := o.staticAn.Analyze(ctx, prompt, code)
	if staticErr == nil && staticRes != nil && len(staticRes.DetectorErrors) > 0 {
		staticErr = detectorError(staticRes.DetectorErrors)
	}
	staticLog := stageLog("static", staticStart, staticErr)
	analysis.StageLogs = append(analysis.StageLogs, staticLog)
	if staticErr != nil {
		o.log.LogError(ctx, staticErr, "orchestrator.staticStage")
	}
	signals.static = staticRes

	// A syntax error makes execution pointless; the dynamic stage is
	// recorded as skipped rather than run against unparseable code.
	dynamicStart := time.Now()
	var dynRes *dynamic.Result
	if staticRes != nil && staticRes.HasSyntaxError() {
		dynRes = &dynamic.Result{Skipped: true, SkipReason: "code does not parse"}
		analysis.StageLogs = append(analysis.StageLogs, types.StageLog{
			Stage: "dynamic", Success: false, Error: dynRes.SkipReason,
		})
	} else {
		dynRes = o.dynamicAn.Analyze(ctx, code)
		log := stageLog("dynamic", dynamicStart, nil)
		if dynRes.Skipped {
			log.Success = false
			log.Error = dynRes.SkipReason
		}
		analysis.StageLogs = append(analysis.StageLogs, log)
	}
	signals.dynamic = dynRes

	classifierStart := time.Now()
	findings := classifier.Classify(staticRes, dynRes, nil)
	findings = explainer.Explain(findings)
	analysis.StageLogs = append(analysis.StageLogs, stageLog("classifier", classifierStart, nil))

	analysis.Findings = findings
	analysis.Summary = explainer.Summary(findings)
	analysis.Recompute()

	if err := o.store.SaveAnalysis(ctx, analysis); err != nil {
		retErr = fmt.Errorf("failed to persist analysis: %w", err)
		return nil, retErr
	}

	o.inProgress.add(analysis.ID, signals)

	job := &types.Job{
		Type:       types.JobTypeLinguistic,
		AnalysisID: analysis.ID,
		Prompt:     prompt,
		Code:       code,
	}
	if err := o.queue.Push(ctx, job); err != nil {
		// The record stays readable as processing; the poll timeout
		// resolves it on the caller side.
		o.inProgress.remove(analysis.ID)
		o.log.LogError(ctx, err, "orchestrator.enqueueLinguistic", "analysis_id", analysis.ID)
	}

	o.telemetry.RecordAnalysis(ctx, time.Since(start).Seconds(), analysis.HasBugs)
	for _, sl := range analysis.StageLogs {
		o.telemetry.RecordStage(ctx, sl.Stage, sl.ElapsedS, sl.Success)
	}

	o.log.WithContext(ctx).Infow("Preliminary analysis stored",
		"analysis_id", analysis.ID,
		"findings", len(analysis.Findings),
		"overall_severity", analysis.OverallSeverity,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

// RunJob is Phase B, invoked by a worker. It runs the four linguistic
// detectors, re-classifies with all three signal sources, and performs
// the record's one completion update. The job's lifetime is not bound
// to any caller connection.
func (o *Orchestrator) RunJob(ctx context.Context, job *types.Job) error {
	if job.Type != types.JobTypeLinguistic {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	log := o.log.WithAnalysisID(job.AnalysisID)
	start := time.Now()
	defer o.inProgress.remove(job.AnalysisID)

	ctx, cancel := context.WithTimeout(ctx, linguisticBudget)
	defer cancel()

	signals := o.inProgress.get(job.AnalysisID)
	if signals == nil || signals.static == nil {
		// Signals are process-local; after a restart (redis queue)
		// the static stage is recomputed and the dynamic one skipped.
		staticRes, err := o.staticAn.Analyze(ctx, job.Prompt, job.Code)
		if err != nil {
			staticRes = nil
		}
		signals = &phaseSignals{static: staticRes}
	}

	src, err := pyast.ParseLenient(job.Code)
	var lingInput *linguistic.Input
	if err == nil {
		defer src.Close()
		lingInput = &linguistic.Input{
			Prompt: job.Prompt,
			Code:   job.Code,
			Src:    src,
			Static: signals.static,
		}
	} else {
		lingInput = &linguistic.Input{Prompt: job.Prompt, Code: job.Code, Static: signals.static}
	}

	lingStart := time.Now()
	lingRes := o.linguistic.Analyze(ctx, lingInput)
	lingLog := stageLog("linguistic", lingStart, nil)

	analysis, err := o.store.GetAnalysis(ctx, job.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to load analysis %s: %w", job.AnalysisID, err)
	}
	if analysis.Status == types.StatusComplete {
		// The processing -> complete transition happens exactly once.
		log.Warnw("Analysis already complete, skipping update")
		return nil
	}

	findings := classifier.Classify(signals.static, signals.dynamic, lingRes)
	findings = explainer.Explain(findings)

	analysis.Findings = findings
	analysis.Summary = explainer.Summary(findings)
	analysis.StageLogs = append(analysis.StageLogs, lingLog)
	analysis.Linguistic = &types.LinguisticExtras{
		IntentMatchScore:   lingRes.IntentMatchScore,
		UnpromptedFeatures: lingRes.NPC.Items,
		MissingFeatures:    lingRes.MissingFeature.Items,
		HardcodedValues:    lingRes.PromptBias.Items,
	}
	analysis.Status = types.StatusComplete
	analysis.Recompute()

	if err := o.store.CompleteAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("failed to complete analysis %s: %w", job.AnalysisID, err)
	}

	o.telemetry.RecordStage(ctx, "linguistic", lingLog.ElapsedS, lingLog.Success)
	for _, f := range analysis.Findings {
		o.telemetry.RecordFinding(ctx, f.Pattern, f.Severity)
	}

	log.Infow("Analysis completed",
		"findings", len(analysis.Findings),
		"overall_severity", analysis.OverallSeverity,
		"intent_match", lingRes.IntentMatchScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// AnalyzeFull runs both phases synchronously. The CLI uses it; the
// HTTP path never does.
func (o *Orchestrator) AnalyzeFull(ctx context.Context, prompt, code string) (*types.Analysis, error) {
	analysis, err := o.Analyze(ctx, prompt, code)
	if err != nil {
		return nil, err
	}
	if analysis.Status == types.StatusComplete {
		return analysis, nil
	}

	job := &types.Job{
		Type:       types.JobTypeLinguistic,
		AnalysisID: analysis.ID,
		Prompt:     prompt,
		Code:       code,
	}
	if err := o.RunJob(ctx, job); err != nil {
		return nil, err
	}
	return o.store.GetAnalysis(ctx, analysis.ID)
}

// Pending reports whether an analysis still has background work in
// this process.
func (o *Orchestrator) Pending(id string) bool {
	return o.inProgress.has(id)
}

func stageLog(stage string, start time.Time, err error) types.StageLog {
	sl := types.StageLog{
		Stage:    stage,
		Success:  err == nil,
		ElapsedS: round3(time.Since(start).Seconds()),
	}
	if err != nil {
		sl.Error = err.Error()
	}
	return sl
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

// detectorError folds per-detector failures into one stage error. The
// findings of the detectors that did run are kept.
func detectorError(errs map[string]error) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, errs[name]))
	}
	return fmt.Errorf("detector failures: %s", strings.Join(parts, "; "))
}
