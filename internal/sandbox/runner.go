// Package sandbox runs untrusted code inside locked-down Docker
// containers: no network, dropped capabilities, memory and CPU limits,
// and a hard wall-clock deadline enforced from the outside.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"algojudge/internal/config"
	"algojudge/internal/logging"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// maxOutputBytes caps how much stdout/stderr is retained per run.
const maxOutputBytes = 1 << 20

// RunRequest describes one container execution.
type RunRequest struct {
	Image    string
	Cmd      []string
	Stdin    string
	Deadline time.Duration

	MemoryMB  int64
	CPUQuota  int64
	CPUPeriod int64
}

// RunResult is the outcome of one container execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int64
	TimedOut bool
}

// Runner executes a command inside an isolated container.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// DockerRunner implements Runner against the Docker Engine API.
type DockerRunner struct {
	cli      *client.Client
	defaults *config.Config

	mu     sync.Mutex
	pulled map[string]bool
}

func NewDockerRunner(cfg *config.Config) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(cfg.DockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerRunner{
		cli:      cli,
		defaults: cfg,
		pulled:   make(map[string]bool),
	}, nil
}

// ensureImage pulls the image on first use and remembers the result so
// subsequent runs start immediately.
func (r *DockerRunner) ensureImage(ctx context.Context, ref string) error {
	r.mu.Lock()
	done := r.pulled[ref]
	r.mu.Unlock()
	if done {
		return nil
	}

	if _, _, err := r.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		r.mu.Lock()
		r.pulled[ref] = true
		r.mu.Unlock()
		return nil
	}

	logging.L().Info("pulling image", zap.String("image", ref))
	rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}

	r.mu.Lock()
	r.pulled[ref] = true
	r.mu.Unlock()
	return nil
}

// Run creates, starts, and waits on a sandboxed container. The request
// deadline is enforced by killing the container; the run is reported as
// timed out rather than failed.
func (r *DockerRunner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := r.ensureImage(ctx, req.Image); err != nil {
		return nil, err
	}

	memoryMB := req.MemoryMB
	if memoryMB <= 0 {
		memoryMB = r.defaults.SandboxMemoryMB
	}
	cpuQuota := req.CPUQuota
	if cpuQuota <= 0 {
		cpuQuota = r.defaults.SandboxCPUQuota
	}
	cpuPeriod := req.CPUPeriod
	if cpuPeriod <= 0 {
		cpuPeriod = r.defaults.SandboxCPUPeriod
	}

	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           req.Image,
			Cmd:             req.Cmd,
			AttachStdin:     true,
			AttachStdout:    true,
			AttachStderr:    true,
			OpenStdin:       true,
			StdinOnce:       true,
			Tty:             false,
			NetworkDisabled: true,
		},
		&container.HostConfig{
			NetworkMode: "none",
			AutoRemove:  false,
			CapDrop:     []string{"ALL"},
			SecurityOpt: []string{"no-new-privileges"},
			Resources: container.Resources{
				Memory:     memoryMB * 1024 * 1024,
				MemorySwap: memoryMB * 1024 * 1024,
				CPUQuota:   cpuQuota,
				CPUPeriod:  cpuPeriod,
				PidsLimit:  ptrInt64(128),
			},
			Tmpfs: map[string]string{
				"/tmp": "rw,exec,size=128m",
			},
		},
		nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	containerID := created.ID

	defer func() {
		// Removal must not inherit a cancelled run context.
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.cli.ContainerRemove(rmCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			logging.L().Warn("container remove failed",
				zap.String("container", containerID), zap.Error(err))
		}
	}()

	attach, err := r.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("attach container: %w", err)
	}
	defer attach.Close()

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	go func() {
		if req.Stdin != "" {
			if _, err := attach.Conn.Write([]byte(req.Stdin)); err != nil {
				logging.L().Debug("stdin write failed", zap.Error(err))
			}
		}
		attach.CloseWrite()
	}()

	stdout := newLimitedBuffer(maxOutputBytes)
	stderr := newLimitedBuffer(maxOutputBytes)
	demuxDone := make(chan error, 1)
	go func() {
		demuxDone <- demux(attach.Reader, stdout, stderr)
	}()

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = r.defaults.TestCaseTimeout
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	waitCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	result := &RunResult{}
	select {
	case status := <-waitCh:
		result.ExitCode = status.StatusCode
	case err := <-errCh:
		return nil, fmt.Errorf("wait container: %w", err)
	case <-timer.C:
		result.TimedOut = true
		killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.cli.ContainerKill(killCtx, containerID, "KILL"); err != nil {
			logging.L().Warn("container kill failed",
				zap.String("container", containerID), zap.Error(err))
		}
	case <-ctx.Done():
		result.TimedOut = true
		killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r.cli.ContainerKill(killCtx, containerID, "KILL")
	}

	// Drain whatever output made it out before the container stopped.
	select {
	case <-demuxDone:
	case <-time.After(2 * time.Second):
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

// Close releases the Docker API client.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}

func ptrInt64(v int64) *int64 { return &v }
