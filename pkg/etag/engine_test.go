package etag

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/Sternrassler/etagger/pkg/canonical"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cfg.Logger = &logger
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func getResponse(payload any) ResponseContext {
	return ResponseContext{
		Method:     "get",
		StatusCode: http.StatusOK,
		Payload:    Classify(payload),
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Algorithm: "crc32"}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("New() error = %v, want ErrUnknownAlgorithm", err)
	}

	engine, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if engine.Config().Algorithm != AlgorithmSHA1 {
		t.Errorf("default algorithm = %q, want %q", engine.Config().Algorithm, AlgorithmSHA1)
	}
}

func TestEngine_Eligible(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	tests := []struct {
		name       string
		resp       ResponseContext
		route      RouteConfig
		wantOK     bool
		wantReason SkipReason
	}{
		{
			name:   "text",
			resp:   getResponse("ok"),
			wantOK: true,
		},
		{
			name:   "upper case method",
			resp:   ResponseContext{Method: "GET", StatusCode: 200, Payload: Text("ok")},
			wantOK: true,
		},
		{
			name:   "explicitly enabled route",
			resp:   getResponse("ok"),
			route:  Enable(),
			wantOK: true,
		},
		{
			name:       "error representation",
			resp:       ResponseContext{Method: "get", StatusCode: 200, Payload: Text("ok"), IsError: true},
			wantReason: SkipError,
		},
		{
			name:       "error representation on disabled route",
			resp:       ResponseContext{Method: "post", StatusCode: 500, IsError: true},
			route:      Disable(),
			wantReason: SkipError,
		},
		{
			name:       "opted out",
			resp:       getResponse("ok"),
			route:      Disable(),
			wantReason: SkipDisabled,
		},
		{
			name:       "post",
			resp:       ResponseContext{Method: "post", StatusCode: 200, Payload: Text("ok")},
			wantReason: SkipMethod,
		},
		{
			name:       "head",
			resp:       ResponseContext{Method: "head", StatusCode: 200, Payload: Text("ok")},
			wantReason: SkipMethod,
		},
		{
			name:       "status 400",
			resp:       ResponseContext{Method: "get", StatusCode: 400, Payload: Structured{Value: map[string]any{"error": "foo"}}},
			wantReason: SkipStatus,
		},
		{
			name:       "status 300",
			resp:       ResponseContext{Method: "get", StatusCode: 300, Payload: Text("ok")},
			wantReason: SkipStatus,
		},
		{
			name:       "status 199",
			resp:       ResponseContext{Method: "get", StatusCode: 199, Payload: Text("ok")},
			wantReason: SkipStatus,
		},
		{
			name:   "status 299",
			resp:   ResponseContext{Method: "get", StatusCode: 299, Payload: Text("ok")},
			wantOK: true,
		},
		{
			name:       "absent payload",
			resp:       getResponse(nil),
			wantReason: SkipAbsent,
		},
		{
			name:       "number payload",
			resp:       getResponse(42),
			wantReason: SkipUnsupported,
		},
		{
			name:   "empty string",
			resp:   getResponse(""),
			wantOK: true,
		},
		{
			name:   "empty bytes",
			resp:   getResponse([]byte{}),
			wantOK: true,
		},
		{
			name:   "structured",
			resp:   getResponse(map[string]any{}),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := engine.Eligible(tt.resp, tt.route)
			if ok != tt.wantOK {
				t.Errorf("Eligible() = %v, want %v", ok, tt.wantOK)
			}
			if reason != tt.wantReason {
				t.Errorf("Eligible() reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestEngine_Eligible_DefaultDisabled(t *testing.T) {
	engine := newTestEngine(t, Config{Enabled: false})

	if ok, reason := engine.Eligible(getResponse("ok"), RouteConfig{}); ok || reason != SkipDisabled {
		t.Errorf("Eligible() = %v, %q, want false, disabled", ok, reason)
	}
	if ok, _ := engine.Eligible(getResponse("ok"), Enable()); !ok {
		t.Error("Eligible() = false for route that opts in")
	}
}

func TestEngine_Evaluate_RoundTrip(t *testing.T) {
	payloads := []struct {
		name    string
		payload any
	}{
		{name: "string", payload: "this is a plain string"},
		{name: "empty string", payload: ""},
		{name: "object", payload: map[string]any{"description": "this is an object", "foo": []any{"bar", "baz"}}},
		{name: "empty object", payload: map[string]any{}},
		{name: "bytes", payload: []byte{0x62, 0x75, 0x66, 0x66, 0x65, 0x72}},
		{name: "empty bytes", payload: []byte{}},
	}

	for _, algo := range []Algorithm{AlgorithmSHA1, AlgorithmSHA256, AlgorithmXXHash} {
		engine := newTestEngine(t, Config{Enabled: true, Algorithm: algo})

		for _, tt := range payloads {
			t.Run(string(algo)+"/"+tt.name, func(t *testing.T) {
				first, err := engine.Evaluate(getResponse(tt.payload), RouteConfig{}, Conditional{})
				if err != nil {
					t.Fatalf("Evaluate() error = %v", err)
				}
				if first.Action != PassThrough || first.ETag == "" {
					t.Fatalf("Evaluate() = %+v, want pass-through with ETag", first)
				}
				if !first.Modified() {
					t.Error("Modified() = false for annotated response")
				}

				second, err := engine.Evaluate(getResponse(tt.payload), RouteConfig{}, IfNoneMatch(first.ETag))
				if err != nil {
					t.Fatalf("Evaluate() error = %v", err)
				}
				if second.Action != NotModified {
					t.Errorf("Evaluate() action = %v, want NotModified", second.Action)
				}
				if second.ETag != first.ETag {
					t.Errorf("Evaluate() ETag = %q, want %q", second.ETag, first.ETag)
				}
			})
		}
	}
}

func TestEngine_Evaluate_Mismatch(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	tests := []struct {
		name string
		cond Conditional
	}{
		{name: "absent", cond: Conditional{}},
		{name: "different token", cond: IfNoneMatch("0-other")},
		{name: "empty value", cond: IfNoneMatch("")},
		{name: "wildcard", cond: IfNoneMatch("*")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := engine.Evaluate(getResponse("ok"), RouteConfig{}, tt.cond)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if d.Action != PassThrough || d.ETag == "" {
				t.Errorf("Evaluate() = %+v, want pass-through with ETag", d)
			}
		})
	}
}

func TestEngine_Evaluate_Skipped(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	token, err := engine.Fingerprint(Text("ok"))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	resp := ResponseContext{Method: "post", StatusCode: 200, Payload: Text("ok")}
	d, err := engine.Evaluate(resp, RouteConfig{}, IfNoneMatch(token))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if d.Modified() {
		t.Errorf("Evaluate() = %+v, want unchanged response", d)
	}
	if d.Reason != SkipMethod {
		t.Errorf("Evaluate() reason = %q, want %q", d.Reason, SkipMethod)
	}
}

func TestEngine_Fingerprint(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	fp := func(p Payload) string {
		t.Helper()
		token, err := engine.Fingerprint(p)
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		return token
	}

	t.Run("deterministic structured", func(t *testing.T) {
		a := map[string]any{"description": "x", "foo": []any{"bar", "baz"}}
		b := map[string]any{"foo": []string{"bar", "baz"}, "description": "x"}
		if fp(Classify(a)) != fp(Classify(b)) {
			t.Error("equal structures produced different fingerprints")
		}
	})

	t.Run("distinct contents", func(t *testing.T) {
		if fp(Text("")) == fp(Text("a")) {
			t.Error("empty and non-empty strings share a fingerprint")
		}
		if fp(Text("a")) == fp(Text("b")) {
			t.Error("distinct strings share a fingerprint")
		}
		a := Classify(map[string]any{"foo": []any{"bar", "baz"}})
		b := Classify(map[string]any{"foo": []any{"baz", "bar"}})
		if fp(a) == fp(b) {
			t.Error("distinct sequences share a fingerprint")
		}
	})

	t.Run("raw bytes", func(t *testing.T) {
		raw := []byte{0xff, 0xfe, 0x00, 0x41}
		if fp(Bytes(raw)) != fp(Text(string(raw))) {
			t.Error("bytes were not hashed as raw content")
		}
		decoded := string([]rune(string(raw)))
		if fp(Bytes(raw)) == fp(Text(decoded)) {
			t.Error("bytes were hashed as decoded text")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		if got := fp(Text("")); got != "0-2jmj7l5rSw0yVb/vlWAYkK/YBwk" {
			t.Errorf("Fingerprint(\"\") = %q", got)
		}
		if fp(Bytes(nil)) != fp(Text("")) {
			t.Error("empty bytes and empty text differ")
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := engine.Fingerprint(Unsupported{Value: 42}); err == nil {
			t.Error("Fingerprint() expected error for unsupported payload")
		}
		if _, err := engine.Fingerprint(nil); err == nil {
			t.Error("Fingerprint() expected error for absent payload")
		}
	})
}

func TestEngine_Evaluate_SerializationError(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	cyclic := map[string]any{"name": "loop"}
	cyclic["self"] = cyclic

	_, err := engine.Evaluate(getResponse(cyclic), RouteConfig{}, Conditional{})
	if err == nil {
		t.Fatal("Evaluate() expected error for circular payload")
	}
	var serr *canonical.SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("Evaluate() error = %T, want *canonical.SerializationError", err)
	}
	if !errors.Is(err, canonical.ErrCycle) {
		t.Errorf("Evaluate() error = %v, want ErrCycle", err)
	}
}

func TestEngine_Evaluate_Concurrent(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	payload := map[string]any{"description": "x", "foo": []any{"bar", "baz"}}

	want, err := engine.Fingerprint(Classify(payload))
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	errs := make(chan error, 32)
	for i := 0; i < cap(errs); i++ {
		go func() {
			d, err := engine.Evaluate(getResponse(payload), RouteConfig{}, IfNoneMatch(want))
			if err == nil && d.Action != NotModified {
				err = errors.New("conditional request did not match")
			}
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}
