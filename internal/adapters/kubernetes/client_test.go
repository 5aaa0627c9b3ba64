package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
)

const testNamespace = "faas"

type stubInvoker struct {
	url   string
	req   engine.InvokeRequest
	reply map[string]any
}

func (s *stubInvoker) Invoke(_ context.Context, url string, req engine.InvokeRequest) (map[string]any, error) {
	s.url, s.req = url, req
	return s.reply, nil
}

func newTestClient(t *testing.T, objects ...runtime.Object) (*Client, *fake.Clientset, *stubInvoker) {
	t.Helper()
	cs := fake.NewSimpleClientset(objects...)
	inv := &stubInvoker{}
	cfg := config.Config{Namespace: testNamespace, PoolSize: 3, WorkerPort: 9090}
	return New(cs, inv, cfg, zerolog.Nop()), cs, inv
}

func poolPod(name, runtimeID string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels:    map[string]string{engine.LabelRuntimeID: runtimeID},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestCreatePool(t *testing.T) {
	c, cs, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.CreatePool(ctx, "rt-1", "python:3.12", map[string]string{"project": "p1"}); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	d, err := cs.AppsV1().Deployments(testNamespace).Get(ctx, "runtime-rt-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if *d.Spec.Replicas != 3 {
		t.Errorf("replicas = %d, want 3", *d.Spec.Replicas)
	}
	if got := d.Spec.Template.Spec.Containers[0].Image; got != "python:3.12" {
		t.Errorf("image = %q, want python:3.12", got)
	}
	if got := d.Spec.Template.Labels[engine.LabelRuntimeID]; got != "rt-1" {
		t.Errorf("runtime label = %q, want rt-1", got)
	}
	if got := d.Spec.Template.Labels["project"]; got != "p1" {
		t.Errorf("project label = %q, want p1", got)
	}

	if err := c.CreatePool(ctx, "rt-1", "python:3.12", nil); err != nil {
		t.Errorf("CreatePool on existing deployment: %v", err)
	}
}

func TestUpdatePool(t *testing.T) {
	c, cs, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.CreatePool(ctx, "rt-1", "python:3.11", nil); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	if !c.UpdatePool(ctx, "rt-1", nil, "python:3.12") {
		t.Fatal("UpdatePool = false, want true")
	}
	d, _ := cs.AppsV1().Deployments(testNamespace).Get(ctx, "runtime-rt-1", metav1.GetOptions{})
	if got := d.Spec.Template.Spec.Containers[0].Image; got != "python:3.12" {
		t.Errorf("image = %q, want python:3.12", got)
	}

	if c.UpdatePool(ctx, "rt-missing", nil, "python:3.12") {
		t.Error("UpdatePool on missing deployment = true, want false")
	}
}

func TestDeletePool(t *testing.T) {
	c, cs, _ := newTestClient(t,
		poolPod("p1", "rt-1", corev1.PodRunning),
		poolPod("p2", "rt-2", corev1.PodRunning),
	)
	ctx := context.Background()
	if err := c.CreatePool(ctx, "rt-1", "python:3.12", nil); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}

	if err := c.DeletePool(ctx, "rt-1", map[string]string{engine.LabelRuntimeID: "rt-1"}); err != nil {
		t.Fatalf("DeletePool: %v", err)
	}
	if _, err := cs.AppsV1().Deployments(testNamespace).Get(ctx, "runtime-rt-1", metav1.GetOptions{}); !k8serrors.IsNotFound(err) {
		t.Errorf("deployment still present: %v", err)
	}
	pods, _ := cs.CoreV1().Pods(testNamespace).List(ctx, metav1.ListOptions{})
	if len(pods.Items) != 1 || pods.Items[0].Name != "p2" {
		t.Errorf("pods = %v, want only p2", pods.Items)
	}

	if err := c.DeletePool(ctx, "rt-1", nil); err != nil {
		t.Errorf("second DeletePool: %v", err)
	}
}

func TestPrepareExecutionClaimsPoolPod(t *testing.T) {
	c, cs, _ := newTestClient(t,
		poolPod("pending", "rt-1", corev1.PodPending),
		poolPod("p1", "rt-1", corev1.PodRunning),
	)
	ctx := context.Background()
	req := engine.PrepareRequest{
		FunctionID: "fn-1",
		Identifier: "rt-1",
		Labels:     map[string]string{engine.LabelRuntimeID: "rt-1"},
		Entry:      "main.main",
	}

	prepared, err := c.PrepareExecution(ctx, req)
	if err != nil {
		t.Fatalf("PrepareExecution: %v", err)
	}
	if prepared.WorkerName != "p1" {
		t.Errorf("worker = %q, want p1", prepared.WorkerName)
	}
	if want := "http://function-fn-1.faas.svc.cluster.local:9090"; prepared.ServiceURL != want {
		t.Errorf("service url = %q, want %q", prepared.ServiceURL, want)
	}

	pod, _ := cs.CoreV1().Pods(testNamespace).Get(ctx, "p1", metav1.GetOptions{})
	if pod.Labels[engine.LabelFunctionID] != "fn-1" {
		t.Errorf("function label = %q, want fn-1", pod.Labels[engine.LabelFunctionID])
	}
	if _, ok := pod.Labels[engine.LabelRuntimeID]; ok {
		t.Error("claimed pod still carries the runtime label")
	}

	svc, err := cs.CoreV1().Services(testNamespace).Get(ctx, "function-fn-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get service: %v", err)
	}
	if svc.Spec.Selector[engine.LabelFunctionID] != "fn-1" {
		t.Errorf("service selector = %v", svc.Spec.Selector)
	}

	again, err := c.PrepareExecution(ctx, req)
	if err != nil {
		t.Fatalf("second PrepareExecution: %v", err)
	}
	if again.WorkerName != "p1" {
		t.Errorf("second worker = %q, want bound pod p1", again.WorkerName)
	}
}

func TestPrepareExecutionNotEnoughWorkers(t *testing.T) {
	c, _, _ := newTestClient(t, poolPod("pending", "rt-1", corev1.PodPending))
	_, err := c.PrepareExecution(context.Background(), engine.PrepareRequest{
		FunctionID: "fn-1",
		Identifier: "rt-1",
		Labels:     map[string]string{engine.LabelRuntimeID: "rt-1"},
	})
	if !errors.Is(err, engine.ErrNotEnoughWorkers) {
		t.Errorf("err = %v, want ErrNotEnoughWorkers", err)
	}
}

func TestImageExecution(t *testing.T) {
	c, cs, _ := newTestClient(t)
	ctx := context.Background()

	prepared, err := c.PrepareExecution(ctx, engine.PrepareRequest{
		FunctionID: "fn-1",
		Image:      "registry.local/hello:1",
		Identifier: "abc-fn-1",
		Labels:     map[string]string{engine.LabelFunctionID: "fn-1"},
		Input:      json.RawMessage(`{"n":1}`),
	})
	if err != nil {
		t.Fatalf("PrepareExecution: %v", err)
	}
	if prepared.WorkerName != "abc-fn-1" || prepared.ServiceURL != "" {
		t.Errorf("prepared = %+v, want pod abc-fn-1 without service", prepared)
	}

	pod, err := cs.CoreV1().Pods(testNamespace).Get(ctx, "abc-fn-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get pod: %v", err)
	}
	env := pod.Spec.Containers[0].Env
	if len(env) == 0 || env[0].Name != "FUNCTION_INPUT" || env[0].Value != `{"n":1}` {
		t.Errorf("env = %v, want FUNCTION_INPUT", env)
	}
	pod.Status.Phase = corev1.PodSucceeded
	if _, err := cs.CoreV1().Pods(testNamespace).UpdateStatus(ctx, pod, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	out, err := c.RunExecution(ctx, engine.RunRequest{FunctionID: "fn-1", Identifier: "abc-fn-1"})
	if err != nil {
		t.Fatalf("RunExecution: %v", err)
	}
	// The fake clientset serves a fixed log body.
	if out != "fake logs" {
		t.Errorf("output = %v, want fake logs", out)
	}
	if _, err := cs.CoreV1().Pods(testNamespace).Get(ctx, "abc-fn-1", metav1.GetOptions{}); !k8serrors.IsNotFound(err) {
		t.Errorf("execution pod not removed: %v", err)
	}
}

func TestRunExecutionUsesInvoker(t *testing.T) {
	c, _, inv := newTestClient(t)
	inv.reply = map[string]any{"success": true}

	out, err := c.RunExecution(context.Background(), engine.RunRequest{
		ExecutionID: "ex-1",
		Input:       json.RawMessage(`{}`),
		ServiceURL:  "http://svc1",
	})
	if err != nil {
		t.Fatalf("RunExecution: %v", err)
	}
	if reply, ok := out.(map[string]any); !ok || reply["success"] != true {
		t.Errorf("output = %v, want invoker reply", out)
	}
	if inv.url != "http://svc1" || inv.req.ExecutionID != "ex-1" {
		t.Errorf("invoked %q with %+v", inv.url, inv.req)
	}
}

func TestScaleUpAndDeleteFunction(t *testing.T) {
	c, cs, _ := newTestClient(t,
		poolPod("p1", "rt-1", corev1.PodRunning),
		poolPod("p2", "rt-1", corev1.PodRunning),
		poolPod("p3", "rt-1", corev1.PodRunning),
	)
	ctx := context.Background()

	names, err := c.ScaleUpFunction(ctx, "fn-1", "rt-1", "main.main", 2)
	if err != nil {
		t.Fatalf("ScaleUpFunction: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2", names)
	}
	if _, err := c.ScaleUpFunction(ctx, "fn-1", "rt-1", "main.main", 2); !errors.Is(err, engine.ErrNotEnoughWorkers) {
		t.Errorf("scale beyond pool: err = %v, want ErrNotEnoughWorkers", err)
	}

	if err := c.DeleteWorker(ctx, names[0]); err != nil {
		t.Fatalf("DeleteWorker: %v", err)
	}
	if err := c.DeleteWorker(ctx, names[0]); err != nil {
		t.Errorf("DeleteWorker missing pod: %v", err)
	}

	if err := c.DeleteFunction(ctx, "fn-1", map[string]string{engine.LabelFunctionID: "fn-1"}); err != nil {
		t.Fatalf("DeleteFunction: %v", err)
	}
	if _, err := cs.CoreV1().Services(testNamespace).Get(ctx, "function-fn-1", metav1.GetOptions{}); !k8serrors.IsNotFound(err) {
		t.Errorf("service still present: %v", err)
	}
	pods, _ := cs.CoreV1().Pods(testNamespace).List(ctx, metav1.ListOptions{})
	if len(pods.Items) != 1 || pods.Items[0].Labels[engine.LabelRuntimeID] != "rt-1" {
		t.Errorf("pods = %v, want the single idle pool pod", pods.Items)
	}
}

func TestPodName(t *testing.T) {
	long := strings.Repeat("a", 62) + "-b"
	tests := []struct {
		in, want string
	}{
		{"ABC-fn", "abc-fn"},
		{long, strings.Repeat("a", 62)},
	}
	for _, tt := range tests {
		if got := podName(tt.in); got != tt.want {
			t.Errorf("podName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeOutput(t *testing.T) {
	if got, ok := decodeOutput([]byte(" {\"result\": 42}\n")).(map[string]any); !ok || got["result"] != float64(42) {
		t.Errorf("json output = %v", got)
	}
	if got := decodeOutput([]byte("hello\n")); got != "hello" {
		t.Errorf("text output = %v, want hello", got)
	}
}
