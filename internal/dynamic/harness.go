package dynamic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeguard/codeguard/internal/pyast"
)

// probeArgs are the representative argument tuples used to smoke-call
// top-level functions, by arity. The zero in second position is what
// surfaces unguarded divisions.
var probeArgs = map[int]string{
	1: "10",
	2: "10, 0",
	3: "10, 0, 1",
}

// BuildHarness wraps user code in the instrumented harness. Harness
// bookkeeping lives under the _cg_ prefix and the user code runs in an
// isolated namespace, so no user-defined name can shadow it. The
// harness catches the first uncaught exception, records its kind,
// message, and line, then emits one JSON document as its final stdout
// line. It never crashes regardless of the user code.
func BuildHarness(code string) string {
	encoded, err := json.Marshal(code)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the harness total
		// anyway.
		encoded = []byte(`""`)
	}

	var probes strings.Builder
	if src, perr := pyast.Parse(code); perr == nil {
		defer src.Close()
		if !src.HasError() {
			for _, fn := range src.Functions() {
				if fn.InClass {
					continue
				}
				args, ok := probeArgs[len(fn.Params)]
				if !ok {
					continue
				}
				fmt.Fprintf(&probes, "    _cg_fn = _cg_ns.get(%q)\n", fn.Name)
				fmt.Fprintf(&probes, "    if callable(_cg_fn):\n")
				fmt.Fprintf(&probes, "        _cg_fn(%s)\n", args)
			}
		}
	}

	return fmt.Sprintf(`import json as _cg_json
_cg_code = %s
_cg_result = {"success": False, "error": None, "error_type": None, "line": None}
_cg_ns = {}
try:
    exec(compile(_cg_code, "<codeguard>", "exec"), _cg_ns)
%s    _cg_result["success"] = True
except BaseException as _cg_e:
    _cg_tb = _cg_e.__traceback__
    _cg_line = None
    while _cg_tb is not None:
        if _cg_tb.tb_frame.f_code.co_filename == "<codeguard>":
            _cg_line = _cg_tb.tb_lineno
        _cg_tb = _cg_tb.tb_next
    _cg_result["error_type"] = type(_cg_e).__name__
    _cg_result["error"] = str(_cg_e)
    _cg_result["line"] = _cg_line
print(_cg_json.dumps(_cg_result))
`, string(encoded), probes.String())
}
