package capability

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"ace/internal/engine"
	"ace/internal/server/model"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const stderrTailLimit = 2048

// ContainerRunner runs one-shot containers and collects their output. It
// is shared by every container-backed capability and by the verifier.
type ContainerRunner struct {
	cli *client.Client
	log *zap.Logger
}

func NewContainerRunner(log *zap.Logger) (*ContainerRunner, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContainerRunner{cli: cli, log: log}, nil
}

// Ping reports whether the docker daemon is reachable.
func (r *ContainerRunner) Ping(ctx context.Context) error {
	_, err := r.cli.Ping(ctx)
	return err
}

// Run creates, starts and waits for a container, then returns its split
// stdout/stderr and exit code. The container is always removed.
func (r *ContainerRunner) Run(ctx context.Context, image, command string, env []string) (stdout, stderr string, exitCode int64, err error) {
	resp, err := r.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image: image,
			Cmd:   []string{"sh", "-c", command},
			Env:   env,
		},
		&container.HostConfig{
			AutoRemove: false, // 禁用自动删除，否则容器退出后取不到日志
		},
		nil, nil, "",
	)
	if err != nil {
		return "", "", 0, err
	}
	containerID := resp.ID

	defer func() {
		rmErr := r.cli.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true})
		if rmErr != nil {
			r.log.Warn("fail to remove container", zap.String("container_id", containerID), zap.Error(rmErr))
		}
	}()

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", "", 0, fmt.Errorf("start container %s: %w", containerID, err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", "", 0, err
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		return "", "", 0, ctx.Err()
	}

	out, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", exitCode, fmt.Errorf("fail to get container logs: %w", err)
	}
	defer out.Close()

	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	if _, err := stdcopy.StdCopy(outBuf, errBuf, out); err != nil {
		return "", "", exitCode, fmt.Errorf("fail to copy container logs: %w", err)
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// ContainerCapability executes a task by running the configured command in
// a fresh container. Task fields and accumulated retry feedback are passed
// through the environment.
type ContainerCapability struct {
	spec   Spec
	runner *ContainerRunner
}

var _ engine.Capability = (*ContainerCapability)(nil)

func NewContainerCapability(spec Spec, runner *ContainerRunner) *ContainerCapability {
	return &ContainerCapability{spec: spec, runner: runner}
}

func (c *ContainerCapability) Name() string {
	return "container/" + c.spec.Category
}

func (c *ContainerCapability) Execute(ctx context.Context, task model.Task, rctx *engine.Context) (engine.Result, error) {
	if c.spec.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.spec.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	env := []string{
		"TASK_TITLE=" + task.Title,
		"TASK_DESCRIPTION=" + task.Description,
		"TASK_CATEGORY=" + task.Category,
		fmt.Sprintf("TASK_PRIORITY=%d", task.Priority),
		fmt.Sprintf("ATTEMPT=%d", rctx.Attempt),
		"FEEDBACK=" + rctx.Notes(),
	}

	stdout, stderr, exitCode, err := c.runner.Run(ctx, c.spec.Image, c.spec.Command, env)
	if err != nil {
		return engine.Result{}, &engine.ExecutionError{
			Reason:    fmt.Sprintf("container execution: %v", err),
			Transient: true,
		}
	}
	if exitCode != 0 {
		return engine.Result{}, &engine.ExecutionError{
			Reason:    fmt.Sprintf("command exited with %d: %s", exitCode, tail(stderr, stderrTailLimit)),
			Transient: false,
		}
	}
	return engine.Result{Output: stdout}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
