// Package docker runs runtime pools and function workers on a single Docker
// host.
package docker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
)

var _ engine.Orchestrator = (*Client)(nil)

// hostAddr is where published worker ports are reachable from the engine.
const hostAddr = "127.0.0.1"

type Client struct {
	cli        *client.Client
	invoker    engine.Invoker
	lg         zerolog.Logger
	poolSize   int
	port       nat.Port
	authHeader string
}

func New(cfg config.Config, inv engine.Invoker, lg zerolog.Logger) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	c := &Client{
		cli:      cli,
		invoker:  inv,
		lg:       lg.With().Str("adapter", "docker").Logger(),
		poolSize: cfg.PoolSize,
		port:     workerPort(cfg.WorkerPort),
	}

	if cfg.RegistryUser != "" && cfg.RegistryPass != "" {
		authConfig := registry.AuthConfig{
			Username:      cfg.RegistryUser,
			Password:      cfg.RegistryPass,
			ServerAddress: cfg.RegistryURL,
		}
		encodedJSON, err := json.Marshal(authConfig)
		if err != nil {
			return nil, fmt.Errorf("marshal auth config: %w", err)
		}
		c.authHeader = base64.URLEncoding.EncodeToString(encodedJSON)
		c.lg.Info().Str("registry", cfg.RegistryURL).Msg("configured registry authentication")
	}

	return c, nil
}

func workerPort(port int) nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", port))
}

func (c *Client) ensureImage(ctx context.Context, img string) error {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("image inspect: %w", err)
	}

	c.lg.Info().Str("image", img).Msg("pulling image from registry")
	rc, err := c.cli.ImagePull(ctx, img, image.PullOptions{RegistryAuth: c.authHeader})
	if err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)

	return nil
}

// containerRef is the part of a listed container the orchestrator needs.
type containerRef struct {
	ID     string
	Name   string
	Image  string
	Labels map[string]string
}

// list returns containers carrying labels whose name starts with prefix.
func (c *Client) list(ctx context.Context, labels map[string]string, prefix string) ([]containerRef, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}
	if prefix != "" {
		args.Add("name", "^/"+prefix)
	}

	found, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("docker list: %w", err)
	}
	refs := make([]containerRef, 0, len(found))
	for _, s := range found {
		name := containerName(s.Names)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		refs = append(refs, containerRef{ID: s.ID, Name: name, Image: s.Image, Labels: s.Labels})
	}
	return refs, nil
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func (c *Client) remove(ctx context.Context, id string) error {
	err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker remove %s: %w", id, err)
	}
	return nil
}

func decodeOutput(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
