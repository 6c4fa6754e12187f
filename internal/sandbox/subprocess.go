package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/pyast"
)

// denyImports lists module names that give user code shell, process,
// network, thread, or file-deletion access. The weak back-end refuses
// any source importing one of these. This is safety-enough for
// analysis, not a security boundary; operators who need a boundary run
// the container back-end or disable the dynamic layer.
var denyImports = map[string]bool{
	"os": true, "subprocess": true, "shutil": true, "socket": true,
	"ctypes": true, "multiprocessing": true, "threading": true,
	"signal": true, "pty": true, "tty": true, "termios": true,
	"resource": true,
}

// subprocessExecutor runs the source as a plain child process bounded
// by the wall timeout.
type subprocessExecutor struct {
	cfg config.SandboxConfig
	log *logger.Logger
}

func newSubprocessExecutor(cfg config.SandboxConfig, log *logger.Logger) *subprocessExecutor {
	python := cfg.PythonPath
	if python == "" {
		python = "python3"
	}
	cfg.PythonPath = python
	return &subprocessExecutor{cfg: cfg, log: log}
}

func (e *subprocessExecutor) Backend() string { return "subprocess" }

func (e *subprocessExecutor) Run(ctx context.Context, source, stdin string) (*core.ExecResult, error) {
	start := time.Now()

	if denied := deniedImport(source); denied != "" {
		e.log.Warnw("Refusing subprocess execution",
			"denied_import", denied,
		)
		return &core.ExecResult{
			Skipped:    true,
			SkipReason: fmt.Sprintf("source imports denied module %q", denied),
			Backend:    "subprocess",
		}, nil
	}

	dir, err := os.MkdirTemp("", "codeguard-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "main.py")
	if err := os.WriteFile(scriptPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write source: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.WallTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.PythonPath, scriptPath)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := &core.ExecResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Backend: "subprocess",
		Elapsed: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	} else if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to run python: %w", runErr)
		}
	}

	if !result.TimedOut {
		if _, ok := ParseLastJSON(result.Stdout); !ok {
			result.ParseError = true
		}
	}

	e.log.Debugw("Sandbox run finished",
		"backend", "subprocess",
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)

	return result, nil
}

// deniedImport returns the first deny-set module the source imports,
// or "". Parsing failures fall back to a conservative textual scan.
func deniedImport(source string) string {
	src, err := pyast.Parse(source)
	if err == nil {
		defer src.Close()
		for _, mod := range src.Imports() {
			if denyImports[mod] {
				return mod
			}
		}
		if !src.HasError() {
			return ""
		}
	}

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		for mod := range denyImports {
			if strings.HasPrefix(trimmed, "import "+mod) || strings.HasPrefix(trimmed, "from "+mod) {
				return mod
			}
		}
	}
	return ""
}
