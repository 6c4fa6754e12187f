package static

import (
	"fmt"
	"strings"

	"github.com/codeguard/codeguard/internal/pyast"
	"github.com/codeguard/codeguard/pkg/types"
)

// dictMethods are attribute names that are legitimate on dictionaries.
var dictMethods = map[string]bool{
	"get": true, "keys": true, "values": true, "items": true,
	"pop": true, "popitem": true, "update": true, "setdefault": true,
	"clear": true, "copy": true, "fromkeys": true,
}

// wrongAttributeDetector uses the intra-file inference: an attribute
// read on a name bound to a dictionary literal is a dict.key mistake.
type wrongAttributeDetector struct{}

func (d *wrongAttributeDetector) Name() string { return "wrong_attribute" }

func (d *wrongAttributeDetector) Detect(src *pyast.Source, prompt string, res *Result) {
	dicts := src.InferredDictNames()
	if len(dicts) == 0 {
		return
	}

	type hit struct {
		object, attr string
		line         int
	}
	var hits []hit

	for _, access := range src.AttributeAccesses() {
		if !dicts[access.Object] || dictMethods[access.Attribute] {
			continue
		}
		// Method calls on dicts beyond the known set still raise at
		// runtime, so keep them; plain data reads are the usual shape.
		hits = append(hits, hit{object: access.Object, attr: access.Attribute, line: access.Line})
	}

	if len(hits) == 0 {
		return
	}

	exprs := make([]string, 0, len(hits))
	for _, h := range hits {
		exprs = append(exprs, fmt.Sprintf("%s.%s", h.object, h.attr))
	}

	res.Findings = append(res.Findings, types.Finding{
		Pattern:    types.PatternWrongAttribute,
		Severity:   7,
		Confidence: 0.75,
		Description: fmt.Sprintf(
			"Detected attribute access on dictionary values: %s. This treats dictionary keys as object attributes (item.key instead of item['key']).",
			strings.Join(exprs, ", ")),
		Location:       fmt.Sprintf("Line %d", hits[0].line),
		DetectionStage: types.StageStatic,
	})
}
