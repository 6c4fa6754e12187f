package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
)

// dockerExecutor runs the source inside a minimal interpreter image
// with network disabled, a memory cap, and a CPU share limit. The code
// directory is mounted read-only; /tmp inside the container is the
// only writable scratch space.
type dockerExecutor struct {
	cli *client.Client
	cfg config.SandboxConfig
	log *logger.Logger
}

func newDockerExecutor(cfg config.SandboxConfig, log *logger.Logger) (*dockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	log.Infow("Docker sandbox initialised",
		"image", cfg.Image,
		"memory_bytes", cfg.MemoryBytes,
		"cpu_quota", cfg.CPUQuota,
	)

	return &dockerExecutor{cli: cli, cfg: cfg, log: log}, nil
}

func (e *dockerExecutor) Backend() string { return "container" }

func (e *dockerExecutor) Run(ctx context.Context, source, stdin string) (*core.ExecResult, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "codeguard-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "main.py")
	if err := os.WriteFile(scriptPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write source: %w", err)
	}

	created, err := e.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           e.cfg.Image,
			Cmd:             []string{"python", "/code/main.py"},
			WorkingDir:      "/tmp",
			NetworkDisabled: true,
		},
		&container.HostConfig{
			Binds:          []string{dir + ":/code:ro"},
			ReadonlyRootfs: true,
			Tmpfs:          map[string]string{"/tmp": "rw"},
			Resources: container.Resources{
				Memory:   e.cfg.MemoryBytes,
				CPUQuota: e.cfg.CPUQuota,
			},
		},
		nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := created.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true})
	}()

	if err := e.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.WallTimeout)
	defer cancel()

	result := &core.ExecResult{Backend: "container"}

	statusCh, errCh := e.cli.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if waitCtx.Err() != nil {
			result.TimedOut = true
			killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = e.cli.ContainerKill(killCtx, containerID, "KILL")
			killCancel()
		} else if err != nil {
			return nil, fmt.Errorf("container wait failed: %w", err)
		}
	}

	stdout, stderr, logErr := e.collectLogs(containerID)
	if logErr != nil {
		e.log.Warnw("Failed to collect container logs", "error", logErr.Error())
	}
	result.Stdout = stdout
	result.Stderr = stderr
	result.Elapsed = time.Since(start)

	if !result.TimedOut {
		if _, ok := ParseLastJSON(result.Stdout); !ok {
			result.ParseError = true
		}
	}

	e.log.Debugw("Sandbox run finished",
		"backend", "container",
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)

	return result, nil
}

func (e *dockerExecutor) collectLogs(containerID string) (string, string, error) {
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader, err := e.cli.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to read container logs: %w", err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("failed to demux logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}
