package kubernetes

import (
	"context"
	"fmt"

	"faas-engine/internal/core/engine"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8slabels "k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/ptr"
)

// CreatePool creates the runtime deployment. An existing deployment is
// reused.
func (c *Client) CreatePool(ctx context.Context, id, image string, labels map[string]string) error {
	podLabels := merge(labels, map[string]string{engine.LabelRuntimeID: id})
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      poolName(id),
			Namespace: c.namespace,
			Labels:    podLabels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(c.poolSize),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{engine.LabelRuntimeID: id},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  workerContainer,
						Image: image,
						Ports: []corev1.ContainerPort{{ContainerPort: c.port}},
					}},
				},
			},
		},
	}

	_, err := c.cs.AppsV1().Deployments(c.namespace).Create(ctx, deployment, metav1.CreateOptions{})
	if err != nil && !k8serrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create deployment: %w", err)
	}
	c.lg.Info().Str("deployment", deployment.Name).Str("image", image).Msg("created runtime pool")

	if err := c.waitAvailable(ctx, deployment.Name); err != nil {
		return err
	}
	return nil
}

// UpdatePool rolls the deployment onto image. Any failure restores the
// previous image and reports false.
func (c *Client) UpdatePool(ctx context.Context, id string, labels map[string]string, image string) bool {
	name := poolName(id)
	lg := c.lg.With().Str("deployment", name).Str("image", image).Logger()

	prev, err := c.setImage(ctx, name, image)
	if err != nil {
		lg.Error().Err(err).Msg("failed to update runtime pool")
		return false
	}
	if err := c.waitAvailable(ctx, name); err != nil {
		lg.Error().Err(err).Str("previous_image", prev).Msg("rollout failed, restoring previous image")
		if _, rerr := c.setImage(context.WithoutCancel(ctx), name, prev); rerr != nil {
			lg.Error().Err(rerr).Msg("failed to restore previous image")
		}
		return false
	}

	lg.Info().Msg("updated runtime pool")
	return true
}

func (c *Client) setImage(ctx context.Context, name, image string) (string, error) {
	deployments := c.cs.AppsV1().Deployments(c.namespace)
	d, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get deployment: %w", err)
	}
	containers := d.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return "", fmt.Errorf("deployment %s has no containers", name)
	}
	prev := containers[0].Image
	containers[0].Image = image
	if _, err := deployments.Update(ctx, d, metav1.UpdateOptions{}); err != nil {
		return prev, fmt.Errorf("update deployment: %w", err)
	}
	return prev, nil
}

// waitAvailable waits until the deployment has rolled out every replica. It
// returns at once when no ready timeout is configured.
func (c *Client) waitAvailable(ctx context.Context, name string) error {
	if c.ready <= 0 {
		return nil
	}
	err := wait.PollUntilContextTimeout(ctx, pollInterval, c.ready, true, func(ctx context.Context) (bool, error) {
		d, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		want := c.poolSize
		if d.Spec.Replicas != nil {
			want = *d.Spec.Replicas
		}
		return d.Status.ObservedGeneration >= d.Generation &&
			d.Status.UpdatedReplicas == want &&
			d.Status.AvailableReplicas == want, nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s not available: %w", name, err)
	}
	return nil
}

// DeletePool removes the deployment and every pod still labelled with the
// runtime.
func (c *Client) DeletePool(ctx context.Context, id string, labels map[string]string) error {
	name := poolName(id)
	err := c.cs.AppsV1().Deployments(c.namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationForeground),
	})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	selector := merge(labels, map[string]string{engine.LabelRuntimeID: id})
	if err := c.deletePods(ctx, selector); err != nil {
		return err
	}
	c.lg.Info().Str("deployment", name).Msg("deleted runtime pool")
	return nil
}

func (c *Client) listPods(ctx context.Context, selector map[string]string) ([]corev1.Pod, error) {
	pods, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: k8slabels.SelectorFromSet(selector).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	return pods.Items, nil
}

func (c *Client) deletePods(ctx context.Context, selector map[string]string) error {
	pods, err := c.listPods(ctx, selector)
	if err != nil {
		return err
	}
	for _, p := range pods {
		if err := c.deletePod(ctx, p.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deletePod(ctx context.Context, name string) error {
	err := c.cs.CoreV1().Pods(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete pod %s: %w", name, err)
	}
	return nil
}
