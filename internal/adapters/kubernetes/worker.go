package kubernetes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"faas-engine/internal/core/engine"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
)

// PrepareExecution starts a one-shot pod for image functions. For package
// functions it binds a pool pod to the function and exposes it through a
// service.
func (c *Client) PrepareExecution(ctx context.Context, req engine.PrepareRequest) (*engine.Prepared, error) {
	if req.Image != "" {
		name, err := c.createJobPod(ctx, req)
		if err != nil {
			return nil, err
		}
		return &engine.Prepared{WorkerName: name}, nil
	}

	bound, err := c.listPods(ctx, map[string]string{engine.LabelFunctionID: req.FunctionID})
	if err != nil {
		return nil, err
	}
	var worker string
	for _, p := range bound {
		if usable(p) {
			worker = p.Name
			break
		}
	}
	if worker == "" {
		names, err := c.claim(ctx, req.FunctionID, req.Labels, req.Entry, 1)
		if err != nil {
			return nil, err
		}
		worker = names[0]
	}

	if err := c.ensureService(ctx, req.FunctionID); err != nil {
		return nil, err
	}
	return &engine.Prepared{WorkerName: worker, ServiceURL: c.serviceURL(req.FunctionID)}, nil
}

func (c *Client) createJobPod(ctx context.Context, req engine.PrepareRequest) (string, error) {
	name := podName(req.Identifier)
	env := []corev1.EnvVar{{Name: "FUNCTION_INPUT", Value: string(req.Input)}}
	if req.Entry != "" {
		env = append(env, corev1.EnvVar{Name: "FUNCTION_ENTRY", Value: req.Entry})
	}
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: c.namespace,
			Labels:    req.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:  workerContainer,
				Image: req.Image,
				Env:   env,
			}},
		},
	}
	if _, err := c.cs.CoreV1().Pods(c.namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("failed to create pod: %w", err)
	}
	c.lg.Info().Str("pod", name).Str("image", req.Image).Msg("created execution pod")
	return name, nil
}

// RunExecution posts to the function service when one is given. Otherwise it
// waits for the one-shot pod and returns its logs, decoded as JSON when they
// parse.
func (c *Client) RunExecution(ctx context.Context, req engine.RunRequest) (any, error) {
	if req.ServiceURL != "" {
		return c.invoker.Invoke(ctx, req.ServiceURL, engine.InvokeRequest{
			Input:       req.Input,
			ExecutionID: req.ExecutionID,
		})
	}

	name := podName(req.Identifier)
	defer func() {
		if err := c.deletePod(context.WithoutCancel(ctx), name); err != nil {
			c.lg.Warn().Err(err).Str("pod", name).Msg("failed to remove execution pod")
		}
	}()

	var phase corev1.PodPhase
	err := wait.PollUntilContextCancel(ctx, pollInterval, true, func(ctx context.Context) (bool, error) {
		p, err := c.cs.CoreV1().Pods(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		phase = p.Status.Phase
		return phase == corev1.PodSucceeded || phase == corev1.PodFailed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for pod %s: %w", name, err)
	}

	logs, err := c.cs.CoreV1().Pods(c.namespace).GetLogs(name, &corev1.PodLogOptions{Container: workerContainer}).DoRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("read logs of pod %s: %w", name, err)
	}
	if phase == corev1.PodFailed {
		return nil, fmt.Errorf("pod %s failed: %s", name, strings.TrimSpace(string(logs)))
	}
	return decodeOutput(logs), nil
}

func decodeOutput(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

// ScaleUpFunction binds count idle pool pods to the function.
func (c *Client) ScaleUpFunction(ctx context.Context, functionID, identifier, entry string, count int) ([]string, error) {
	names, err := c.claim(ctx, functionID, map[string]string{engine.LabelRuntimeID: identifier}, entry, count)
	if err != nil {
		return nil, err
	}
	if err := c.ensureService(ctx, functionID); err != nil {
		return nil, err
	}
	c.lg.Info().Str("function_id", functionID).Strs("pods", names).Msg("scaled up function")
	return names, nil
}

// claim relabels count idle pods matching pool so the pool's deployment no
// longer owns them and the function's service selects them.
func (c *Client) claim(ctx context.Context, functionID string, pool map[string]string, entry string, count int) ([]string, error) {
	pods, err := c.listPods(ctx, pool)
	if err != nil {
		return nil, err
	}
	var idle []corev1.Pod
	for _, p := range pods {
		if usable(p) && p.Labels[engine.LabelFunctionID] == "" {
			idle = append(idle, p)
		}
	}
	if len(idle) < count {
		return nil, fmt.Errorf("%w: need %d, have %d", engine.ErrNotEnoughWorkers, count, len(idle))
	}

	names := make([]string, 0, count)
	for i := range idle {
		if len(names) == count {
			break
		}
		p := &idle[i]
		delete(p.Labels, engine.LabelRuntimeID)
		p.Labels[engine.LabelFunctionID] = functionID
		if p.Annotations == nil {
			p.Annotations = map[string]string{}
		}
		p.Annotations["faas-engine/entry"] = entry

		_, err := c.cs.CoreV1().Pods(c.namespace).Update(ctx, p, metav1.UpdateOptions{})
		if k8serrors.IsConflict(err) || k8serrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim pod %s: %w", p.Name, err)
		}
		names = append(names, p.Name)
	}
	if len(names) < count {
		return nil, fmt.Errorf("%w: claimed %d of %d", engine.ErrNotEnoughWorkers, len(names), count)
	}
	return names, nil
}

func (c *Client) ensureService(ctx context.Context, functionID string) error {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      serviceName(functionID),
			Namespace: c.namespace,
			Labels:    map[string]string{engine.LabelFunctionID: functionID},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{engine.LabelFunctionID: functionID},
			Ports: []corev1.ServicePort{{
				Port:       c.port,
				TargetPort: intstr.FromInt32(c.port),
			}},
		},
	}
	_, err := c.cs.CoreV1().Services(c.namespace).Create(ctx, svc, metav1.CreateOptions{})
	if err != nil && !k8serrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (c *Client) DeleteWorker(ctx context.Context, workerName string) error {
	return c.deletePod(ctx, workerName)
}

// DeleteFunction removes the function's service and every pod labelled with
// it.
func (c *Client) DeleteFunction(ctx context.Context, functionID string, labels map[string]string) error {
	err := c.cs.CoreV1().Services(c.namespace).Delete(ctx, serviceName(functionID), metav1.DeleteOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	selector := merge(labels, map[string]string{engine.LabelFunctionID: functionID})
	if err := c.deletePods(ctx, selector); err != nil {
		return err
	}
	c.lg.Info().Str("function_id", functionID).Msg("deleted function resources")
	return nil
}

func usable(p corev1.Pod) bool {
	return p.DeletionTimestamp == nil && p.Status.Phase == corev1.PodRunning
}

// podName turns an identifier into a valid pod name.
func podName(identifier string) string {
	name := strings.ToLower(identifier)
	if len(name) > engine.MaxIdentifierLen {
		name = name[:engine.MaxIdentifierLen]
	}
	return strings.TrimRight(name, "-.")
}
