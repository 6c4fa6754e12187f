// Package static implements the first analysis stage: nine structural
// detectors over the parsed Python source.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// pythonBuiltins is the enumerated whitelist of names that always
// resolve. A name on this list is never reported as hallucinated.
var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "ascii": true, "bin": true,
	"bool": true, "bytearray": true, "bytes": true, "callable": true,
	"chr": true, "classmethod": true, "compile": true, "complex": true,
	"delattr": true, "dict": true, "dir": true, "divmod": true,
	"enumerate": true, "eval": true, "exec": true, "filter": true,
	"float": true, "format": true, "frozenset": true, "getattr": true,
	"globals": true, "hasattr": true, "hash": true, "help": true,
	"hex": true, "id": true, "input": true, "int": true,
	"isinstance": true, "issubclass": true, "iter": true, "len": true,
	"list": true, "locals": true, "map": true, "max": true,
	"memoryview": true, "min": true, "next": true, "object": true,
	"oct": true, "open": true, "ord": true, "pow": true, "print": true,
	"property": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "slice": true,
	"sorted": true, "staticmethod": true, "str": true, "sum": true,
	"super": true, "tuple": true, "type": true, "vars": true, "zip": true,
	"True": true, "False": true, "None": true, "NotImplemented": true,
	"Ellipsis": true, "__name__": true, "__file__": true, "__doc__": true,
	"__builtins__": true, "__import__": true,
	"Exception": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "AttributeError": true,
	"NameError": true, "ZeroDivisionError": true, "RuntimeError": true,
	"StopIteration": true, "NotImplementedError": true, "OSError": true,
}

// commonModules are module names whose bare mention is not treated as
// a hallucination even without an import statement; flagging "math" in
// otherwise-correct code buries the real findings.
var commonModules = map[string]bool{
	"math": true, "os": true, "sys": true, "re": true, "json": true,
	"time": true, "datetime": true, "random": true, "collections": true,
	"itertools": true, "functools": true, "numpy": true, "pandas": true,
	"logging": true, "pathlib": true, "io": true, "typing": true,
	"copy": true, "pickle": true,
}

// HallucinatedName is a confirmed-unresolved identifier, kept aside so
// the classifier can match dynamic NameError evidence against it.
type HallucinatedName struct {
	Name string
	Line int
}

// CandidateLiteral is a literal collected as a prompt-bias candidate.
// The static stage only collects; the linguistic stage judges.
type CandidateLiteral struct {
	Kind string
	Text string
	Line int
}

// ReturnShapeSignal records a mismatch between the prompt's declared
// return intent and the value category of the last reachable return.
// It is a signal for the linguistic layer, not a finding.
type ReturnShapeSignal struct {
	Expected string
	Actual   string
	Line     int
}

// Result aggregates the static stage's output.
type Result struct {
	Findings          []types.Finding
	Hallucinated      []HallucinatedName
	CandidateLiterals []CandidateLiteral
	ReturnShape       *ReturnShapeSignal
	SyntaxError       bool
	DetectorErrors    map[string]error
}

// HasSyntaxError reports whether the syntax detector fired.
func (r *Result) HasSyntaxError() bool {
	return r.SyntaxError
}

// detector is a pure function of the parsed source and the prompt.
type detector interface {
	Name() string
	Detect(src *pyast.Source, prompt string, res *Result)
}

// Analyzer parses the source once and runs all detectors over it.
type Analyzer struct {
	log       *logger.Logger
	detectors []detector
}

func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{
		log: log.WithComponent("static"),
		detectors: []detector{
			&syntaxDetector{},
			&hallucinationDetector{},
			&incompleteDetector{},
			&sillyMistakeDetector{},
			&wrongAttributeDetector{},
			&wrongInputTypeDetector{},
			&promptBiasSurface{},
			&cornerCaseDetector{},
			&returnShapeDetector{},
		},
	}
}

// Analyze parses source and runs every detector. A detector panic is
// recorded and does not suppress the others.
func (a *Analyzer) Analyze(ctx context.Context, prompt, code string) (*Result, error) {
	start := time.Now()
	res := &Result{DetectorErrors: make(map[string]error)}

	// The syntax detector reads the unmodified parse: the lenient retry
	// blanks the offending line and may come back error-free.
	strict, err := pyast.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	defer strict.Close()

	src, err := pyast.ParseLenient(code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	defer src.Close()

	for _, d := range a.detectors {
		if _, ok := d.(*syntaxDetector); ok {
			a.runDetector(ctx, d, strict, prompt, res)
			continue
		}
		a.runDetector(ctx, d, src, prompt, res)
	}

	a.log.LogDuration(ctx, "static.Analyze", start,
		"findings", len(res.Findings),
		"syntax_error", res.SyntaxError,
	)
	return res, nil
}

func (a *Analyzer) runDetector(ctx context.Context, d detector, src *pyast.Source, prompt string, res *Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("detector %s panicked: %v", d.Name(), recovered)
			res.DetectorErrors[d.Name()] = err
			a.log.LogError(ctx, err, "static.runDetector", "detector", d.Name())
		}
	}()
	d.Detect(src, prompt, res)
}
