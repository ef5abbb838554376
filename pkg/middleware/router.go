package middleware

import (
	"net/http"
	"sort"

	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/go-chi/chi/v5"
)

// RouteOption configures a single route.
type RouteOption func(*etag.RouteConfig)

// WithETag opts a route in or out of ETag processing.
func WithETag(enabled bool) RouteOption {
	return func(rc *etag.RouteConfig) {
		rc.Enabled = &enabled
	}
}

// WithRouteConfig replaces the route configuration.
func WithRouteConfig(cfg etag.RouteConfig) RouteOption {
	return func(rc *etag.RouteConfig) {
		*rc = cfg
	}
}

// Router is a chi route table whose handlers run through a Hook.
type Router struct {
	mux       chi.Router
	hook      *Hook
	overrides map[string]etag.RouteConfig

	// patterns holds every registered route pattern.
	patterns map[string]struct{}
}

// NewRouter creates a Router applying engine to every registered HandlerFunc.
func NewRouter(engine *etag.Engine, opts Options) *Router {
	rt := &Router{
		mux:       chi.NewRouter(),
		hook:      NewHook(engine, opts),
		overrides: opts.Overrides,
		patterns:  make(map[string]struct{}),
	}

	rt.mux.NotFound(rt.handler(etag.RouteConfig{}, func(r *http.Request) (*Response, error) {
		return nil, Errorf(http.StatusNotFound, "Not Found")
	}))
	rt.mux.MethodNotAllowed(rt.handler(etag.RouteConfig{}, func(r *http.Request) (*Response, error) {
		return nil, Errorf(http.StatusMethodNotAllowed, "Method Not Allowed")
	}))

	return rt
}

// Hook returns the hook shared by all routes.
func (rt *Router) Hook() *Hook {
	return rt.hook
}

// Use appends middlewares to the stack. It must be called before routes are
// registered.
func (rt *Router) Use(middlewares ...func(http.Handler) http.Handler) {
	rt.mux.Use(middlewares...)
}

// Method registers h for method and pattern.
func (rt *Router) Method(method, pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.patterns[pattern] = struct{}{}
	rt.mux.Method(method, pattern, rt.handler(rt.routeConfig(pattern, opts), h))
}

// Get registers h for GET requests.
func (rt *Router) Get(pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.Method(http.MethodGet, pattern, h, opts...)
}

// Post registers h for POST requests.
func (rt *Router) Post(pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.Method(http.MethodPost, pattern, h, opts...)
}

// Put registers h for PUT requests.
func (rt *Router) Put(pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.Method(http.MethodPut, pattern, h, opts...)
}

// Patch registers h for PATCH requests.
func (rt *Router) Patch(pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.Method(http.MethodPatch, pattern, h, opts...)
}

// Delete registers h for DELETE requests.
func (rt *Router) Delete(pattern string, h HandlerFunc, opts ...RouteOption) {
	rt.Method(http.MethodDelete, pattern, h, opts...)
}

// Handle registers a plain handler for all methods. The handler bypasses
// the hook unless it is wrapped with Hook.Middleware.
func (rt *Router) Handle(pattern string, h http.Handler) {
	rt.patterns[pattern] = struct{}{}
	rt.mux.Handle(pattern, h)
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// UnusedOverrides logs a warning for every configured override whose
// pattern matches no registered route and returns those patterns, sorted.
// Call it after all routes are registered.
func (rt *Router) UnusedOverrides() []string {
	var unused []string
	for pattern := range rt.overrides {
		if _, ok := rt.patterns[pattern]; !ok {
			unused = append(unused, pattern)
		}
	}
	sort.Strings(unused)

	for _, pattern := range unused {
		rt.hook.logger.Warn().Str("route", pattern).Msg("Route override matches no registered route")
	}
	return unused
}

// URLParam returns the value of a route parameter.
func URLParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// routeConfig resolves the configuration of a route: registration options
// beat configured overrides, which beat the engine default.
func (rt *Router) routeConfig(pattern string, opts []RouteOption) etag.RouteConfig {
	cfg := rt.overrides[pattern]
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (rt *Router) handler(route etag.RouteConfig, h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h(r)
		rt.hook.Respond(w, r, route, resp, err)
	}
}
