package static

import (
	"fmt"
	"strings"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// hallucinationDetector flags names read in expression context that
// resolve to neither a builtin, a local binding, nor an import.
type hallucinationDetector struct{}

func (d *hallucinationDetector) Name() string { return "hallucination" }

func (d *hallucinationDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	defined := src.DefinedNames()

	imported := make(map[string]bool)
	for _, mod := range src.Imports() {
		imported[mod] = true
	}

	seen := make(map[string]bool)
	var unresolved []HallucinatedName

	for _, ref := range src.LoadNames() {
		name := ref.Name
		if seen[name] || pythonBuiltins[name] || defined[name] || imported[name] || commonModules[name] {
			continue
		}
		seen[name] = true
		unresolved = append(unresolved, HallucinatedName{Name: name, Line: ref.Line})
	}

	if len(unresolved) == 0 {
		return
	}

	res.Hallucinated = unresolved

	names := make([]string, 0, len(unresolved))
	for _, h := range unresolved {
		names = append(names, h.Name)
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternHallucinated,
		Severity:   8,
		Confidence: 0.85,
		Description: fmt.Sprintf(
			"The code references undefined names that may not exist: %s. Language models sometimes invent functions, classes, or variables that are not available.",
			strings.Join(names, ", ")),
		Location:       fmt.Sprintf("Line %d", unresolved[0].Line),
		DetectionStage: types.StageStatic,
	})
}
