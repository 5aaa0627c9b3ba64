package docker

import (
	"context"
	"fmt"
	"maps"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

func poolPrefix(runtimeID string) string    { return "pool-" + runtimeID + "-" }
func workerPrefix(functionID string) string { return "fn-" + functionID + "-" }

// CreatePool starts the idle containers of a runtime.
func (c *Client) CreatePool(ctx context.Context, id, image string, labels map[string]string) error {
	if err := c.ensureImage(ctx, image); err != nil {
		return err
	}
	for range c.poolSize {
		if _, err := c.startIdle(ctx, id, image, labels); err != nil {
			return err
		}
	}
	c.lg.Info().Str("runtime_id", id).Int("size", c.poolSize).Msg("created runtime pool")
	return nil
}

func (c *Client) startIdle(ctx context.Context, runtimeID, image string, labels map[string]string) (string, error) {
	all := maps.Clone(labels)
	if all == nil {
		all = map[string]string{}
	}
	all[engine.LabelRuntimeID] = runtimeID

	name := poolPrefix(runtimeID) + rand.ID16()
	resp, err := c.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        image,
			Labels:       all,
			ExposedPorts: nat.PortSet{c.port: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				c.port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}},
			},
		},
		nil, nil, name,
	)
	if err != nil {
		return "", fmt.Errorf("docker create: %w", err)
	}
	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = c.remove(ctx, resp.ID)
		return "", fmt.Errorf("docker start: %w", err)
	}
	c.lg.Debug().Str("container", name).Msg("started idle container")
	return resp.ID, nil
}

// UpdatePool replaces the idle containers with ones on image. New containers
// are started before the old ones are removed; on failure the new ones are
// removed and the pool is left as it was.
func (c *Client) UpdatePool(ctx context.Context, id string, labels map[string]string, image string) bool {
	lg := c.lg.With().Str("runtime_id", id).Str("image", image).Logger()

	if err := c.ensureImage(ctx, image); err != nil {
		lg.Error().Err(err).Msg("failed to update runtime pool")
		return false
	}
	old, err := c.list(ctx, map[string]string{engine.LabelRuntimeID: id}, poolPrefix(id))
	if err != nil {
		lg.Error().Err(err).Msg("failed to update runtime pool")
		return false
	}

	var started []string
	for range c.poolSize {
		cid, err := c.startIdle(ctx, id, image, labels)
		if err != nil {
			lg.Error().Err(err).Msg("failed to update runtime pool, rolling back")
			for _, s := range started {
				if rerr := c.remove(context.WithoutCancel(ctx), s); rerr != nil {
					lg.Warn().Err(rerr).Str("container_id", s).Msg("failed to remove new container")
				}
			}
			return false
		}
		started = append(started, cid)
	}

	for _, o := range old {
		if err := c.remove(ctx, o.ID); err != nil {
			lg.Warn().Err(err).Str("container", o.Name).Msg("failed to remove old container")
		}
	}
	lg.Info().Msg("updated runtime pool")
	return true
}

// DeletePool removes the idle containers of a runtime. Containers already
// bound to functions are left to DeleteFunction.
func (c *Client) DeletePool(ctx context.Context, id string, labels map[string]string) error {
	idle, err := c.list(ctx, labels, poolPrefix(id))
	if err != nil {
		return err
	}
	for _, r := range idle {
		if err := c.remove(ctx, r.ID); err != nil {
			return err
		}
	}
	c.lg.Info().Str("runtime_id", id).Int("removed", len(idle)).Msg("deleted runtime pool")
	return nil
}
