package sandbox

import (
	"encoding/json"
	"strings"
)

// ParseLastJSON scans stdout from the last line upward and returns the
// first line that parses as a JSON object. User code may interleave
// arbitrary prints before the harness emits its single JSON document;
// those are tolerated.
func ParseLastJSON(stdout string) (map[string]interface{}, bool) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			continue
		}
		return doc, true
	}
	return nil, false
}
