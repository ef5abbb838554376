package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/Sternrassler/etagger/pkg/metrics"
	"github.com/Sternrassler/etagger/pkg/middleware"
	"github.com/Sternrassler/etagger/pkg/store"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxDocumentSize bounds PUT request bodies.
const maxDocumentSize = 1 << 20

// documentStore is the subset of *store.Store used by the handlers.
type documentStore interface {
	Get(ctx context.Context, name string) (*store.Document, error)
	Put(ctx context.Context, name string, doc *store.Document) error
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}

func newRouter(engine *etag.Engine, docs documentStore, opts middleware.Options) *middleware.Router {
	router := middleware.NewRouter(engine, opts)
	router.Use(chimw.Recoverer)

	router.Get("/health", healthHandler)
	router.Get("/ready", readyHandler(docs), middleware.WithETag(false))
	router.Handle("/metrics", metrics.Handler())

	router.Get("/docs/{key}", getDocumentHandler(docs))
	router.Put("/docs/{key}", putDocumentHandler(docs))
	router.Delete("/docs/{key}", deleteDocumentHandler(docs))

	router.UnusedOverrides()

	return router
}

func healthHandler(r *http.Request) (*middleware.Response, error) {
	return middleware.OK("OK"), nil
}

func readyHandler(docs documentStore) middleware.HandlerFunc {
	return func(r *http.Request) (*middleware.Response, error) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := docs.Ping(ctx); err != nil {
			return nil, &middleware.HTTPError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Redis unavailable",
				Err:        err,
			}
		}
		return middleware.OK("OK"), nil
	}
}

func getDocumentHandler(docs documentStore) middleware.HandlerFunc {
	return func(r *http.Request) (*middleware.Response, error) {
		key := middleware.URLParam(r, "key")

		doc, err := docs.Get(r.Context(), key)
		if err != nil {
			return nil, storeError(key, err)
		}

		payload, err := documentPayload(doc)
		if err != nil {
			return nil, err
		}

		resp := middleware.OK(payload)
		if doc.ContentType != "" {
			resp.SetHeader("Content-Type", doc.ContentType)
		}
		if !doc.UpdatedAt.IsZero() {
			resp.SetHeader("Last-Modified", doc.UpdatedAt.UTC().Format(http.TimeFormat))
		}
		return resp, nil
	}
}

func putDocumentHandler(docs documentStore) middleware.HandlerFunc {
	return func(r *http.Request) (*middleware.Response, error) {
		key := middleware.URLParam(r, "key")

		data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
		if err != nil {
			return nil, &middleware.HTTPError{StatusCode: http.StatusBadRequest, Message: "Cannot read request body", Err: err}
		}
		if len(data) > maxDocumentSize {
			return nil, middleware.Errorf(http.StatusRequestEntityTooLarge, "Document exceeds %d bytes", maxDocumentSize)
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		doc := &store.Document{ContentType: contentType, Data: data}
		if _, err := doc.Payload(); err != nil {
			return nil, middleware.Errorf(http.StatusBadRequest, "Invalid JSON document")
		}

		if err := docs.Put(r.Context(), key, doc); err != nil {
			return nil, storeError(key, err)
		}
		return &middleware.Response{StatusCode: http.StatusNoContent}, nil
	}
}

func deleteDocumentHandler(docs documentStore) middleware.HandlerFunc {
	return func(r *http.Request) (*middleware.Response, error) {
		key := middleware.URLParam(r, "key")

		if err := docs.Delete(r.Context(), key); err != nil {
			return nil, storeError(key, err)
		}
		return &middleware.Response{StatusCode: http.StatusNoContent}, nil
	}
}

// documentPayload converts a stored document into a handler payload. JSON
// objects and arrays are served as structured data; JSON scalars are served
// verbatim.
func documentPayload(doc *store.Document) (any, error) {
	v, err := doc.Payload()
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	if doc.IsJSON() {
		return doc.Data, nil
	}
	return v, nil
}

func storeError(key string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return middleware.Errorf(http.StatusNotFound, "Document %q not found", key)
	case errors.Is(err, store.ErrInvalidName):
		return middleware.Errorf(http.StatusBadRequest, "Invalid document name")
	case errors.Is(err, store.ErrInvalidDocument):
		return err
	}
	return &middleware.HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "Document store unavailable", Err: err}
}
