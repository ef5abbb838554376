package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/Sternrassler/etagger/pkg/logging"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

const (
	contentTypeText  = "text/plain; charset=utf-8"
	contentTypeBytes = "application/octet-stream"
	contentTypeJSON  = "application/json; charset=utf-8"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures a Hook and a Router.
type Options struct {
	// EmptyStatusCode is sent instead of 200 when the body is empty
	// (default: 204). Set it to 200 to keep the status unchanged.
	EmptyStatusCode int

	// Overrides maps route patterns to route configuration, typically loaded
	// from a configuration file. Options passed when registering a route
	// take precedence.
	Overrides map[string]etag.RouteConfig

	// Logger to use. A component logger from the global zerolog logger is
	// used if nil.
	Logger *zerolog.Logger
}

// Hook applies the etag engine to outgoing responses.
type Hook struct {
	engine      *etag.Engine
	emptyStatus int
	logger      zerolog.Logger
}

// NewHook creates a Hook running engine.
func NewHook(engine *etag.Engine, opts Options) *Hook {
	if engine == nil {
		panic("etag engine cannot be nil")
	}

	var logger zerolog.Logger
	if opts.Logger == nil {
		logger = logging.NewLogger("middleware")
	} else {
		logger = opts.Logger.With().Str("component", "middleware").Logger()
	}

	emptyStatus := opts.EmptyStatusCode
	if emptyStatus == 0 {
		emptyStatus = http.StatusNoContent
	}

	return &Hook{
		engine:      engine,
		emptyStatus: emptyStatus,
		logger:      logger,
	}
}

// Respond writes the response produced by a HandlerFunc for r, applying the
// ETag decision for route. handlerErr is the error returned by the handler.
func (h *Hook) Respond(w http.ResponseWriter, r *http.Request, route etag.RouteConfig, resp *Response, handlerErr error) {
	logger := logging.WithRequest(h.logger, r)

	if resp == nil {
		resp = &Response{}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	var payload etag.Payload
	if handlerErr != nil {
		herr := toHTTPError(handlerErr)
		if herr.StatusCode >= 500 {
			logger.Error().Err(handlerErr).Msg("Handler failed")
		}
		status = herr.StatusCode
		payload = etag.Structured{Value: herr.document()}
	} else {
		payload = etag.Classify(resp.Payload)
	}

	decision, err := h.engine.Evaluate(etag.ResponseContext{
		Method:     r.Method,
		StatusCode: status,
		Payload:    payload,
		IsError:    handlerErr != nil,
	}, route, ifNoneMatch(r.Header))
	if err != nil {
		logger.Error().Err(err).Msg("Cannot fingerprint response payload")
		h.writeError(w, logger, err)
		return
	}

	body, contentType, err := encodeBody(payload)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot encode response payload")
		h.writeError(w, logger, err)
		return
	}

	header := w.Header()
	if handlerErr == nil {
		for key, values := range resp.Header {
			header[key] = append([]string(nil), values...)
		}
	}
	if header.Get("Content-Type") == "" && contentType != "" {
		header.Set("Content-Type", contentType)
	}

	h.write(w, logger, status, decision, body)
}

// write sends status, headers and body according to decision.
func (h *Hook) write(w http.ResponseWriter, logger zerolog.Logger, status int, decision etag.Decision, body []byte) {
	header := w.Header()
	if decision.ETag != "" {
		header.Set("ETag", quote(decision.ETag))
	}

	if decision.Action == etag.NotModified {
		header.Del("Content-Type")
		header.Del("Content-Length")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if len(body) == 0 && status == http.StatusOK {
		status = h.emptyStatus
	}
	if !bodyAllowed(status) {
		header.Del("Content-Type")
		header.Del("Content-Length")
		w.WriteHeader(status)
		return
	}

	header.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

// writeError answers with a 500 error document. Headers set by the handler
// are not applied.
func (h *Hook) writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	doc := toHTTPError(err).document()
	body, encErr := codec.Marshal(doc)
	if encErr != nil {
		logger.Error().Err(encErr).Msg("Cannot encode error document")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Del("ETag")
	header.Set("Content-Type", contentTypeJSON)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(doc.StatusCode)
	if _, err := w.Write(body); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

// encodeBody renders payload for the wire.
func encodeBody(payload etag.Payload) ([]byte, string, error) {
	switch p := payload.(type) {
	case nil:
		return nil, "", nil
	case etag.Text:
		return []byte(p), contentTypeText, nil
	case etag.Bytes:
		return p, contentTypeBytes, nil
	case etag.Structured:
		b, err := codec.Marshal(p.Value)
		return b, contentTypeJSON, err
	case etag.Unsupported:
		b, err := codec.Marshal(p.Value)
		return b, contentTypeJSON, err
	}
	return nil, "", nil
}

// ifNoneMatch decodes the request's If-None-Match header.
func ifNoneMatch(header http.Header) etag.Conditional {
	values := header.Values("If-None-Match")
	if len(values) == 0 {
		return etag.Conditional{}
	}
	v := strings.TrimSpace(values[0])
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	return etag.IfNoneMatch(v)
}

func quote(token string) string {
	return `"` + token + `"`
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
