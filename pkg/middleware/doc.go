// Package middleware plugs the etag engine into net/http.
//
// Handlers registered on a Router return a *Response (status, payload,
// headers) instead of writing to the http.ResponseWriter. The Router calls
// Hook.Respond once per request, right before the response is sent, which
// classifies the payload, runs the engine and then either writes the
// response with an ETag header, replaces it with 304 Not Modified, or
// writes it unchanged.
//
//	engine, _ := etag.New(etag.DefaultConfig())
//	router := middleware.NewRouter(engine, middleware.Options{})
//
//	router.Get("/docs/{key}", func(r *http.Request) (*middleware.Response, error) {
//		return middleware.OK(map[string]any{"key": middleware.URLParam(r, "key")}), nil
//	})
//
//	// opt a route out
//	router.Get("/live", liveHandler, middleware.WithETag(false))
//
// Plain http.Handlers can be wrapped with Hook.Middleware, which buffers the
// downstream body and fingerprints it as raw bytes.
//
// On the wire, ETags are sent quoted (ETag: "<token>") and If-None-Match is
// decoded by removing one pair of surrounding quotes. Lists, weak validators
// and "*" are not interpreted.
package middleware
