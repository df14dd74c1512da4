package tools

import (
	"context"
	"encoding/json"
	"testing"
)

// spyRegistry returns a registry with one mutating tool that records whether
// it ran.
func spyRegistry(ran *bool) *Registry {
	r := NewEmptyRegistry()
	r.Register(Spec{
		Name:        "mutate",
		Description: "test tool",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"value": map[string]interface{}{"type": "string"},
			},
		},
		Required: []string{"value"},
		Mutating: true,
		Run: func(ctx context.Context, ex *Executor, args Args) (string, error) {
			*ran = true
			return "mutated", nil
		},
	})
	return r
}

func newTestExecutor(t *testing.T, reg *Registry, confirm Confirmer) *Executor {
	t.Helper()
	return NewExecutor(reg, NewUndoLog(), confirm, DefaultExecutorConfig(t.TempDir()))
}

func TestInvokeUnknownTool(t *testing.T) {
	ex := newTestExecutor(t, NewEmptyRegistry(), AutoApprove)
	res := ex.Invoke(context.Background(), Call{ID: "c1", Name: "nope"})
	if !res.IsError() || res.ErrKind != KindUnknownTool {
		t.Fatalf("res = %+v", res)
	}
	if res.CallID != "c1" {
		t.Fatalf("call id = %q", res.CallID)
	}
}

func TestInvokeInvalidArgs(t *testing.T) {
	var ran bool
	ex := newTestExecutor(t, spyRegistry(&ran), AutoApprove)

	cases := []struct {
		name string
		args string
	}{
		{"malformed json", `{not json`},
		{"missing required", `{}`},
		{"wrong type", `{"value": 7}`},
		{"unexpected key", `{"value": "x", "extra": true}`},
	}
	for _, tc := range cases {
		res := ex.Invoke(context.Background(), Call{
			ID: "c1", Name: "mutate", Arguments: json.RawMessage(tc.args),
		})
		if !res.IsError() || res.ErrKind != KindInvalidArgs {
			t.Fatalf("%s: res = %+v", tc.name, res)
		}
	}
	if ran {
		t.Fatal("tool ran despite invalid args")
	}
}

func TestInvokeDeclinedConfirmation(t *testing.T) {
	var ran bool
	decline := ConfirmerFunc(func(ConfirmRequest) ConfirmResponse {
		return ConfirmResponse{Approved: false}
	})
	ex := newTestExecutor(t, spyRegistry(&ran), decline)

	res := ex.Invoke(context.Background(), Call{
		ID: "c1", Name: "mutate", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	if !res.IsError() || res.ErrKind != KindUserDeclined {
		t.Fatalf("res = %+v", res)
	}
	if ran {
		t.Fatal("declined tool must not run")
	}
}

func TestInvokeSkipFutureApprovesSessionWide(t *testing.T) {
	var ran bool
	var prompts int
	gate := ConfirmerFunc(func(ConfirmRequest) ConfirmResponse {
		prompts++
		return ConfirmResponse{Approved: true, SkipFuture: true}
	})
	ex := newTestExecutor(t, spyRegistry(&ran), gate)

	call := Call{ID: "c1", Name: "mutate", Arguments: json.RawMessage(`{"value":"x"}`)}
	ex.Invoke(context.Background(), call)
	ex.Invoke(context.Background(), call)

	if prompts != 1 {
		t.Fatalf("prompts = %d, want 1 (skip-future should cover the second call)", prompts)
	}
}

func TestInvokeYoloBypassesConfirmation(t *testing.T) {
	var ran bool
	var prompted bool
	gate := ConfirmerFunc(func(ConfirmRequest) ConfirmResponse {
		prompted = true
		return ConfirmResponse{}
	})
	ex := newTestExecutor(t, spyRegistry(&ran), gate)
	ex.SetYolo(true)

	res := ex.Invoke(context.Background(), Call{
		ID: "c1", Name: "mutate", Arguments: json.RawMessage(`{"value":"x"}`),
	})
	if res.IsError() {
		t.Fatalf("res = %+v", res)
	}
	if prompted {
		t.Fatal("yolo mode must not prompt")
	}
	if !ran {
		t.Fatal("tool did not run")
	}
}

func TestInvokeNonMutatingSkipsGate(t *testing.T) {
	var prompted bool
	gate := ConfirmerFunc(func(ConfirmRequest) ConfirmResponse {
		prompted = true
		return ConfirmResponse{}
	})
	reg := NewEmptyRegistry()
	reg.Register(Spec{
		Name:        "peek",
		Description: "read only",
		Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Run: func(ctx context.Context, ex *Executor, args Args) (string, error) {
			return "data", nil
		},
	})
	ex := newTestExecutor(t, reg, gate)

	res := ex.Invoke(context.Background(), Call{ID: "c1", Name: "peek", Arguments: json.RawMessage(`{}`)})
	if res.IsError() || prompted {
		t.Fatalf("res = %+v, prompted = %v", res, prompted)
	}
}

func TestInvokeCancelledContext(t *testing.T) {
	var ran bool
	ex := newTestExecutor(t, spyRegistry(&ran), AutoApprove)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ex.Invoke(ctx, Call{ID: "c1", Name: "mutate", Arguments: json.RawMessage(`{"value":"x"}`)})
	if !res.IsError() || res.ErrKind != KindCancelled {
		t.Fatalf("res = %+v", res)
	}
	if ran {
		t.Fatal("tool ran despite cancelled context")
	}
}

func TestInvokeTruncatesLongOutput(t *testing.T) {
	reg := NewEmptyRegistry()
	reg.Register(Spec{
		Name:        "flood",
		Description: "produce a lot of output",
		Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Run: func(ctx context.Context, ex *Executor, args Args) (string, error) {
			out := make([]byte, 100000)
			for i := range out {
				out[i] = 'x'
			}
			return string(out), nil
		},
	})
	cfg := DefaultExecutorConfig(t.TempDir())
	cfg.OutputLimit = 1000
	ex := NewExecutor(reg, NewUndoLog(), AutoApprove, cfg)

	res := ex.Invoke(context.Background(), Call{ID: "c1", Name: "flood", Arguments: json.RawMessage(`{}`)})
	if res.IsError() {
		t.Fatalf("res = %+v", res)
	}
	if len(res.Payload) > 1200 {
		t.Fatalf("payload length = %d, expected truncation near 1000", len(res.Payload))
	}
}

func TestInvokeToolErrorKindExtraction(t *testing.T) {
	reg := NewEmptyRegistry()
	reg.Register(Spec{
		Name:        "fail",
		Description: "always fails",
		Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Run: func(ctx context.Context, ex *Executor, args Args) (string, error) {
			return "", failf(KindTargetNotFound, "nothing here")
		},
	})
	ex := newTestExecutor(t, reg, AutoApprove)
	res := ex.Invoke(context.Background(), Call{ID: "c1", Name: "fail", Arguments: json.RawMessage(`{}`)})
	if res.ErrKind != KindTargetNotFound {
		t.Fatalf("kind = %s", res.ErrKind)
	}
}
