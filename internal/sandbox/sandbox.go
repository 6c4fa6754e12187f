// Package sandbox executes untrusted Python source in an isolated
// process. Two back-ends share one contract: a container (strong
// isolation) and a plain subprocess guarded by an import deny-set
// (weak isolation). Whichever runs, the caller observes the same
// ExecResult shape.
package sandbox

import (
	"context"
	"fmt"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
)

// New selects a back-end from configuration. When the container
// back-end is requested but the Docker daemon is unreachable, the
// subprocess back-end is used instead and the degradation is logged.
func New(cfg config.SandboxConfig, log *logger.Logger) (core.SandboxExecutor, error) {
	log = log.WithComponent("sandbox")

	switch cfg.Backend {
	case config.SandboxDisabled:
		return &disabledExecutor{}, nil
	case config.SandboxSubprocess:
		return newSubprocessExecutor(cfg, log), nil
	case config.SandboxContainer, "":
		exec, err := newDockerExecutor(cfg, log)
		if err != nil {
			log.Warnw("Docker unavailable, falling back to subprocess sandbox",
				"error", err.Error(),
			)
			return newSubprocessExecutor(cfg, log), nil
		}
		return exec, nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Backend)
	}
}

// disabledExecutor skips every run. Callers record the skip in stage
// logs and the analysis completes without dynamic signals.
type disabledExecutor struct{}

func (e *disabledExecutor) Backend() string { return "disabled" }

func (e *disabledExecutor) Run(ctx context.Context, source, stdin string) (*core.ExecResult, error) {
	return &core.ExecResult{
		Skipped:    true,
		SkipReason: "sandbox disabled by configuration",
		Backend:    "disabled",
	}, nil
}
