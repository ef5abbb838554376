package middleware

import (
	"bytes"
	"net/http"

	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/Sternrassler/etagger/pkg/logging"
)

// bufferedWriter holds back status and body of a downstream handler until
// the hook has decided what to send.
type bufferedWriter struct {
	w          http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

// Header implements http.ResponseWriter.
func (bw *bufferedWriter) Header() http.Header {
	return bw.w.Header()
}

// Write implements http.ResponseWriter.
func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if bw.statusCode == 0 {
		bw.statusCode = http.StatusOK
	}
	if bw.body == nil {
		bw.body = &bytes.Buffer{}
	}
	return bw.body.Write(b)
}

// WriteHeader implements http.ResponseWriter.
func (bw *bufferedWriter) WriteHeader(statusCode int) {
	if bw.statusCode == 0 {
		bw.statusCode = statusCode
	}
}

// payload returns the buffered body, nil if the handler never wrote one.
func (bw *bufferedWriter) payload() etag.Payload {
	if bw.body == nil {
		return nil
	}
	return etag.Bytes(bw.body.Bytes())
}

// Middleware returns a middleware applying the hook to plain handlers. The
// downstream body is buffered in memory and fingerprinted as raw bytes;
// responses that never write a body are passed through untouched.
func (h *Hook) Middleware(route etag.RouteConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bw := &bufferedWriter{w: w}
			next.ServeHTTP(bw, r)

			status := bw.statusCode
			if status == 0 {
				status = http.StatusOK
			}
			payload := bw.payload()
			logger := logging.WithRequest(h.logger, r)

			decision, err := h.engine.Evaluate(etag.ResponseContext{
				Method:     r.Method,
				StatusCode: status,
				Payload:    payload,
			}, route, ifNoneMatch(r.Header))
			if err != nil {
				logger.Error().Err(err).Msg("Cannot fingerprint response payload")
				h.writeError(w, logger, err)
				return
			}

			if decision.ETag != "" {
				w.Header().Set("ETag", quote(decision.ETag))
			}
			if decision.Action == etag.NotModified {
				w.Header().Del("Content-Type")
				w.Header().Del("Content-Length")
				w.WriteHeader(http.StatusNotModified)
				return
			}

			w.WriteHeader(status)
			if payload == nil {
				return
			}
			if _, err := w.Write(bw.body.Bytes()); err != nil {
				logger.Error().Err(err).Msg("Failed to write response")
			}
		})
	}
}
