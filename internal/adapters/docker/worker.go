package docker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// PrepareExecution creates the one-shot container of an image function, or
// binds a pool container to a package function.
func (c *Client) PrepareExecution(ctx context.Context, req engine.PrepareRequest) (*engine.Prepared, error) {
	if req.Image != "" {
		name, err := c.createJob(ctx, req)
		if err != nil {
			return nil, err
		}
		return &engine.Prepared{WorkerName: name}, nil
	}

	bound, err := c.list(ctx, nil, workerPrefix(req.FunctionID))
	if err != nil {
		return nil, err
	}
	var worker string
	if len(bound) > 0 {
		worker = bound[0].Name
	} else {
		names, err := c.claim(ctx, req.FunctionID, req.Identifier, 1)
		if err != nil {
			return nil, err
		}
		worker = names[0]
	}

	url, err := c.serviceURL(ctx, worker)
	if err != nil {
		return nil, err
	}
	return &engine.Prepared{WorkerName: worker, ServiceURL: url}, nil
}

func (c *Client) createJob(ctx context.Context, req engine.PrepareRequest) (string, error) {
	if err := c.ensureImage(ctx, req.Image); err != nil {
		return "", err
	}
	env := []string{"FUNCTION_INPUT=" + string(req.Input)}
	if req.Entry != "" {
		env = append(env, "FUNCTION_ENTRY="+req.Entry)
	}
	name := jobName(req.Identifier)
	_, err := c.cli.ContainerCreate(ctx,
		&container.Config{Image: req.Image, Env: env, Labels: req.Labels},
		&container.HostConfig{},
		nil, nil, name,
	)
	if err != nil {
		return "", fmt.Errorf("docker create: %w", err)
	}
	c.lg.Info().Str("container", name).Str("image", req.Image).Msg("created execution container")
	return name, nil
}

// RunExecution posts to the function service when one is given. Otherwise it
// runs the one-shot container to completion and returns its output.
func (c *Client) RunExecution(ctx context.Context, req engine.RunRequest) (any, error) {
	if req.ServiceURL != "" {
		return c.invoker.Invoke(ctx, req.ServiceURL, engine.InvokeRequest{
			Input:       req.Input,
			ExecutionID: req.ExecutionID,
		})
	}

	name := jobName(req.Identifier)
	defer func() {
		if err := c.remove(context.WithoutCancel(ctx), name); err != nil {
			c.lg.Warn().Err(err).Str("container", name).Msg("failed to remove execution container")
		}
	}()

	if err := c.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("docker start: %w", err)
	}

	var exitCode int64
	statusCh, errCh := c.cli.ContainerWait(ctx, name, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("docker wait: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	rc, err := c.cli.ContainerLogs(ctx, name, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("docker logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("container %s exited with %d: %s", name, exitCode, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.Bytes()), nil
}

// ScaleUpFunction binds count idle pool containers to the function.
func (c *Client) ScaleUpFunction(ctx context.Context, functionID, identifier, entry string, count int) ([]string, error) {
	names, err := c.claim(ctx, functionID, identifier, count)
	if err != nil {
		return nil, err
	}
	c.lg.Info().Str("function_id", functionID).Strs("containers", names).Msg("scaled up function")
	return names, nil
}

// claim renames count idle containers of the runtime to the function and
// starts a replacement for each.
func (c *Client) claim(ctx context.Context, functionID, runtimeID string, count int) ([]string, error) {
	idle, err := c.list(ctx, map[string]string{engine.LabelRuntimeID: runtimeID}, poolPrefix(runtimeID))
	if err != nil {
		return nil, err
	}
	if len(idle) < count {
		return nil, fmt.Errorf("%w: need %d, have %d", engine.ErrNotEnoughWorkers, count, len(idle))
	}

	names := make([]string, 0, count)
	for _, r := range idle[:count] {
		name := workerPrefix(functionID) + rand.ID16()
		if err := c.cli.ContainerRename(ctx, r.ID, name); err != nil {
			return nil, fmt.Errorf("docker rename %s: %w", r.Name, err)
		}
		names = append(names, name)

		if _, err := c.startIdle(ctx, runtimeID, r.Image, r.Labels); err != nil {
			c.lg.Warn().Err(err).Str("runtime_id", runtimeID).Msg("failed to replenish pool")
		}
	}
	return names, nil
}

func (c *Client) serviceURL(ctx context.Context, name string) (string, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "", fmt.Errorf("docker inspect: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[c.port]
	if len(bindings) == 0 {
		return "", fmt.Errorf("container %s does not publish %s", name, c.port)
	}
	return fmt.Sprintf("http://%s:%s", hostAddr, bindings[0].HostPort), nil
}

func (c *Client) DeleteWorker(ctx context.Context, workerName string) error {
	return c.remove(ctx, workerName)
}

// DeleteFunction removes every container bound to the function.
func (c *Client) DeleteFunction(ctx context.Context, functionID string, labels map[string]string) error {
	bound, err := c.list(ctx, nil, workerPrefix(functionID))
	if err != nil {
		return err
	}
	if len(labels) > 0 {
		jobs, err := c.list(ctx, labels, "")
		if err != nil {
			return err
		}
		bound = append(bound, jobs...)
	}
	for _, r := range bound {
		if err := c.remove(ctx, r.ID); err != nil {
			return err
		}
	}
	c.lg.Info().Str("function_id", functionID).Msg("deleted function resources")
	return nil
}

// jobName turns an identifier into a container name.
func jobName(identifier string) string {
	name := strings.ToLower(identifier)
	if len(name) > engine.MaxIdentifierLen {
		name = name[:engine.MaxIdentifierLen]
	}
	return strings.TrimRight(name, "-.")
}
