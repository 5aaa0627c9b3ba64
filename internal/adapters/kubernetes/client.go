// Package kubernetes runs runtime pools and function workers on a cluster.
package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"

	"github.com/rs/zerolog"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

var _ engine.Orchestrator = (*Client)(nil)

const (
	workerContainer = "worker"
	pollInterval    = time.Second
)

type Client struct {
	cs        kubernetes.Interface
	invoker   engine.Invoker
	namespace string
	poolSize  int32
	port      int32
	ready     time.Duration
	lg        zerolog.Logger
}

// NewClientset uses the in-cluster config and falls back to a kubeconfig
// file, ~/.kube/config when path is empty.
func NewClientset(path string) (kubernetes.Interface, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		if path == "" {
			path = filepath.Join(os.Getenv("HOME"), ".kube", "config")
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, fmt.Errorf("k8s config: %w", err)
		}
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("k8s clientset: %w", err)
	}
	return cs, nil
}

// New returns an orchestrator on cs. Requests to running function services
// go through inv.
func New(cs kubernetes.Interface, inv engine.Invoker, cfg config.Config, lg zerolog.Logger) *Client {
	return &Client{
		cs:        cs,
		invoker:   inv,
		namespace: cfg.Namespace,
		poolSize:  int32(cfg.PoolSize),
		port:      int32(cfg.WorkerPort),
		ready:     cfg.PoolReadyTimeout,
		lg:        lg.With().Str("adapter", "kubernetes").Logger(),
	}
}

func poolName(runtimeID string) string    { return "runtime-" + runtimeID }
func serviceName(functionID string) string { return "function-" + functionID }

func (c *Client) serviceURL(functionID string) string {
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", serviceName(functionID), c.namespace, c.port)
}

func merge(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
