package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	e := NoopEngineHooks{}
	e.OnCallStart(ctx, "reduce")
	e.OnCallComplete(ctx, "reduce", time.Second, nil)

	s := NoopSessionHooks{}
	s.OnLoad(ctx, 12, nil)
	s.OnReduce(ctx, 3, "auto", 10, time.Second, nil)
	s.OnNavigate(ctx, "back", 0)
	s.OnAutoStop(ctx, "exhausted", 4)

	st := NoopStoreHooks{}
	st.OnSlotRead(ctx, "file", true)
	st.OnSlotWrite(ctx, "redis", 1024, nil)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "localhost:7878", "/reduce")
	h.OnResponse(ctx, "POST", "localhost:7878", "/reduce", 200, time.Second)
	h.OnError(ctx, "POST", "localhost:7878", "/reduce", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Engine().(NoopEngineHooks); !ok {
		t.Error("Engine() should return NoopEngineHooks by default")
	}
	if _, ok := Session().(NoopSessionHooks); !ok {
		t.Error("Session() should return NoopSessionHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customEngine := &testEngineHooks{}
	SetEngineHooks(customEngine)
	if Engine() != customEngine {
		t.Error("SetEngineHooks should set custom hooks")
	}

	customSession := &testSessionHooks{}
	SetSessionHooks(customSession)
	if Session() != customSession {
		t.Error("SetSessionHooks should set custom hooks")
	}

	customStore := &testStoreHooks{}
	SetStoreHooks(customStore)
	if Store() != customStore {
		t.Error("SetStoreHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Engine().(NoopEngineHooks); !ok {
		t.Error("Reset() should restore NoopEngineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testEngineHooks{}
	SetEngineHooks(custom)
	SetEngineHooks(nil)

	if Engine() != custom {
		t.Error("SetEngineHooks(nil) should be ignored")
	}

	Reset()
}

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp.Enabled() {
		t.Error("tracing enabled without an endpoint")
	}
	if tp.Tracer() == nil {
		t.Error("Tracer() = nil")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSpanHelpersWithNoopProvider(t *testing.T) {
	ctx, span := StartEngineSpan(context.Background(), "load")
	RecordGraphSize(span, 3, 2)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	_, span = StartSessionSpan(ctx, "reduce")
	span.End()
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

type testEngineHooks struct{ NoopEngineHooks }
type testSessionHooks struct{ NoopSessionHooks }
type testStoreHooks struct{ NoopStoreHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
