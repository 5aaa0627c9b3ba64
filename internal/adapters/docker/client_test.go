package docker

import (
	"strings"
	"testing"
)

func TestNames(t *testing.T) {
	if got := poolPrefix("rt-1"); got != "pool-rt-1-" {
		t.Errorf("poolPrefix = %q", got)
	}
	if got := workerPrefix("fn-1"); got != "fn-fn-1-" {
		t.Errorf("workerPrefix = %q", got)
	}
	if got := workerPort(9090); got != "9090/tcp" {
		t.Errorf("workerPort = %q", got)
	}

	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"/pool-rt-1-abc"}, "pool-rt-1-abc"},
		{[]string{"plain"}, "plain"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := containerName(tt.names); got != tt.want {
			t.Errorf("containerName(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}

func TestJobName(t *testing.T) {
	long := strings.Repeat("f", 62) + "-x"
	if got := jobName(long); got != strings.Repeat("f", 62) {
		t.Errorf("jobName(long) = %q", got)
	}
	if got := jobName("ABC-Fn"); got != "abc-fn" {
		t.Errorf("jobName = %q, want abc-fn", got)
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"number", "42\n", float64(42)},
		{"string", "\"hi\"", "hi"},
		{"text", "plain text\n", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeOutput([]byte(tt.in)); got != tt.want {
				t.Errorf("decodeOutput(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	obj, ok := decodeOutput([]byte(`{"result":42}`)).(map[string]any)
	if !ok || obj["result"] != float64(42) {
		t.Errorf("object output = %v", obj)
	}
}
