// Package dynamic implements the second analysis stage: the target
// program runs inside the sandbox wrapped in an instrumented harness,
// and the captured runtime failure becomes a pattern hypothesis.
package dynamic

import (
	"context"
	"fmt"
	"time"

	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/sandbox"
	"github.com/codeguard/codeguard/pkg/types"
)

// Hypothesis is the runtime-derived pattern suggestion. A dynamic run
// produces at most one; the classifier reconciles it with the static
// signals.
type Hypothesis struct {
	Kind     string
	Pattern  types.Pattern
	Message  string
	Line     int
	Severity int
}

// Result is the dynamic stage's sparse output.
type Result struct {
	Ran              bool
	Skipped          bool
	SkipReason       string
	ExecutionSuccess bool
	TimedOut         bool
	ParseError       bool
	Backend          string
	Hypothesis       *Hypothesis
}

// Analyzer wraps user code in the harness, submits it to the sandbox,
// and classifies the captured exception. It never returns an error to
// the orchestrator: sandbox failures degrade into a skipped result.
type Analyzer struct {
	executor core.SandboxExecutor
	log      *logger.Logger
}

func NewAnalyzer(executor core.SandboxExecutor, log *logger.Logger) *Analyzer {
	return &Analyzer{
		executor: executor,
		log:      log.WithComponent("dynamic"),
	}
}

// Analyze runs the harnessed program and maps the outcome.
func (a *Analyzer) Analyze(ctx context.Context, code string) *Result {
	start := time.Now()

	harness := BuildHarness(code)
	exec, err := a.executor.Run(ctx, harness, "")
	if err != nil {
		a.log.LogError(ctx, err, "dynamic.Analyze")
		return &Result{
			Skipped:    true,
			SkipReason: fmt.Sprintf("sandbox execution failed: %v", err),
			Backend:    a.executor.Backend(),
		}
	}

	res := &Result{Backend: exec.Backend}

	switch {
	case exec.Skipped:
		res.Skipped = true
		res.SkipReason = exec.SkipReason
	case exec.TimedOut:
		res.Ran = true
		res.TimedOut = true
		res.Hypothesis = &Hypothesis{
			Kind:     "Timeout",
			Pattern:  types.PatternMissingCornerCase,
			Message:  "execution exceeded the wall timeout",
			Severity: 3,
		}
	default:
		res.Ran = true
		doc, ok := sandbox.ParseLastJSON(exec.Stdout)
		if !ok {
			res.ParseError = true
			break
		}
		res.ExecutionSuccess, _ = doc["success"].(bool)
		if !res.ExecutionSuccess {
			res.Hypothesis = classifyException(doc)
		}
	}

	a.log.LogDuration(ctx, "dynamic.Analyze", start,
		"backend", res.Backend,
		"ran", res.Ran,
		"timed_out", res.TimedOut,
		"success", res.ExecutionSuccess,
	)
	return res
}

// classifyException maps the harness-reported exception kind to a
// pattern hypothesis with its severity seed.
func classifyException(doc map[string]interface{}) *Hypothesis {
	kind, _ := doc["error_type"].(string)
	message, _ := doc["error"].(string)
	line := 0
	if v, ok := doc["line"].(float64); ok {
		line = int(v)
	}

	h := &Hypothesis{Kind: kind, Message: message, Line: line}

	switch kind {
	case "AttributeError":
		h.Pattern = types.PatternWrongAttribute
		h.Severity = 6
	case "TypeError":
		h.Pattern = types.PatternWrongInputType
		h.Severity = 6
	case "NameError":
		h.Pattern = types.PatternHallucinated
		h.Severity = 8
	case "ZeroDivisionError":
		h.Pattern = types.PatternMissingCornerCase
		h.Severity = 5
	case "IndexError", "KeyError", "ValueError":
		h.Pattern = types.PatternMissingCornerCase
		h.Severity = 5
	default:
		// Unmapped runtime failures still indicate an unhandled path.
		h.Pattern = types.PatternMissingCornerCase
		h.Severity = 4
	}

	return h
}
