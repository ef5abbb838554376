package etag

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/etagger/pkg/canonical"
	"github.com/Sternrassler/etagger/pkg/logging"
	"github.com/rs/zerolog"
)

// ResponseContext is the outgoing response under evaluation.
type ResponseContext struct {
	// Method is the request method, compared case-insensitively.
	Method string

	// StatusCode is the response status code.
	StatusCode int

	// Payload is the response body, nil when absent.
	Payload Payload

	// IsError marks an already materialized error response.
	IsError bool
}

// Conditional is the request's If-None-Match value, already decoded by the
// transport (no surrounding quotes).
type Conditional struct {
	Value   string
	Present bool
}

// IfNoneMatch returns a present Conditional holding v.
func IfNoneMatch(v string) Conditional {
	return Conditional{Value: v, Present: true}
}

// Action is the outcome of a Decision.
type Action int

const (
	// PassThrough continues with the original response, adding ETag if set.
	PassThrough Action = iota

	// NotModified replaces the response with 304 and no body.
	NotModified
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case PassThrough:
		return "pass_through"
	case NotModified:
		return "not_modified"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// SkipReason names the eligibility rule that excluded a response.
type SkipReason string

// Skip reasons, one per eligibility rule.
const (
	SkipError       SkipReason = "error"
	SkipDisabled    SkipReason = "disabled"
	SkipMethod      SkipReason = "method"
	SkipStatus      SkipReason = "status"
	SkipAbsent      SkipReason = "absent"
	SkipUnsupported SkipReason = "unsupported"
)

// Decision is the result of evaluating one response.
type Decision struct {
	Action Action

	// ETag is the token to send in the ETag header. Empty when the
	// response was not eligible.
	ETag string

	// Reason is set when the response was not eligible.
	Reason SkipReason
}

// Modified reports whether the response has to change at all.
func (d Decision) Modified() bool {
	return d.Action == NotModified || d.ETag != ""
}

// Engine runs the eligibility filter and the fingerprint engine.
// An Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	config Config
	hash   hashFunc
	logger zerolog.Logger
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmSHA1
	}
	hash, ok := hashers[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}

	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = logging.NewLogger("etag")
	} else {
		logger = cfg.Logger.With().Str("component", "etag").Logger()
	}

	return &Engine{
		config: cfg,
		hash:   hash,
		logger: logger,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Eligible reports whether resp qualifies for ETag processing on a route
// configured with route. When it does not, the failing rule is returned.
func (e *Engine) Eligible(resp ResponseContext, route RouteConfig) (bool, SkipReason) {
	if resp.IsError {
		return false, SkipError
	}
	if !route.resolve(e.config.Enabled) {
		return false, SkipDisabled
	}
	if !strings.EqualFold(resp.Method, http.MethodGet) {
		return false, SkipMethod
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, SkipStatus
	}

	switch KindOf(resp.Payload) {
	case KindAbsent:
		return false, SkipAbsent
	case KindText, KindBytes, KindStructured:
		return true, ""
	default:
		return false, SkipUnsupported
	}
}

// Fingerprint computes the ETag token for p. Structured payloads that cannot
// be serialized yield a *canonical.SerializationError.
func (e *Engine) Fingerprint(p Payload) (string, error) {
	start := time.Now()
	var data []byte
	switch v := p.(type) {
	case Text:
		data = []byte(v)
	case Bytes:
		data = v
	case Structured:
		b, err := canonical.Marshal(v.Value)
		if err != nil {
			return "", err
		}
		data = b
	default:
		return "", fmt.Errorf("fingerprint %s payload: %w", KindOf(p), canonical.ErrUnsupportedType)
	}

	token := stripQuotes(e.hash(data))
	FingerprintDuration.WithLabelValues(string(e.config.Algorithm)).Observe(time.Since(start).Seconds())
	return token, nil
}

// Evaluate decides what to do with resp. It returns an error only when a
// structured payload cannot be serialized; the caller must treat that as a
// failed request rather than skipping ETag processing.
func (e *Engine) Evaluate(resp ResponseContext, route RouteConfig, cond Conditional) (Decision, error) {
	if ok, reason := e.Eligible(resp, route); !ok {
		Skips.WithLabelValues(string(reason)).Inc()
		Decisions.WithLabelValues("skip").Inc()
		return Decision{Action: PassThrough, Reason: reason}, nil
	}

	token, err := e.Fingerprint(resp.Payload)
	if err != nil {
		var serr *canonical.SerializationError
		if errors.As(err, &serr) {
			SerializationErrors.Inc()
		}
		e.logger.Debug().
			Err(err).
			Str("method", resp.Method).
			Int("status_code", resp.StatusCode).
			Msg("Fingerprint failed")
		return Decision{}, fmt.Errorf("etag fingerprint: %w", err)
	}

	if cond.Present && cond.Value == token {
		Decisions.WithLabelValues("not_modified").Inc()
		e.logger.Debug().
			Str("method", resp.Method).
			Str("etag", token).
			Msg("Conditional request matched")
		return Decision{Action: NotModified, ETag: token}, nil
	}

	Decisions.WithLabelValues("etag").Inc()
	e.logger.Debug().
		Str("method", resp.Method).
		Int("status_code", resp.StatusCode).
		Str("etag", token).
		Bool("conditional", cond.Present).
		Msg("ETag computed")
	return Decision{Action: PassThrough, ETag: token}, nil
}
