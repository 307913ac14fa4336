package dispatcher

import (
	"net/http"
	"strings"

	"spacecombat/pkg/logger"
)

// Router :
// Dispatches requests to the handler registered for their exact
// path, filtered by HTTP method. `internal/runtime` registers a
// fixed, small set of GET-only endpoints at bootstrap and never
// adds or removes routes afterwards, so routes are held in a map
// keyed by path rather than the ordered, regexp-matched list a
// REST-style partial-path router would need.
//
// The `notFoundHandler` is called when no route is registered
// for the request's path.
//
// The `methodNotAllowedHandler` is called when a route exists for
// the path but does not accept the request's method.
//
// The `log` is passed to every route created through this router
// so it can notify of invalid method registrations.
type Router struct {
	notFoundHandler         http.Handler
	methodNotAllowedHandler http.Handler
	routes                  map[string]*Route
	log                     logger.Logger
}

// NewRouter :
// Creates a new router with default handlers for not found and
// method not allowed, and no routes registered.
//
// Returns the created router.
func NewRouter(log logger.Logger) *Router {
	return &Router{
		notFoundHandler:         NotFound(log),
		methodNotAllowedHandler: NotAllowed(log),
		routes:                  make(map[string]*Route),
		log:                     log,
	}
}

// HandleFunc :
// Registers a route for the exact given path, associated with
// `f`. Registering the same path twice replaces the earlier
// route rather than keeping both, since there is no notion of
// partial-match ranking to arbitrate between them.
//
// The `path` is normalized by trimming its trailing slash, so
// `/status` and `/status/` are the same route.
//
// Returns the created route so `Methods` can be chained onto it.
func (r *Router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) *Route {
	route := NewRoute(r.log).HandlerFunc(f)
	r.routes[normalizePath(path)] = route

	return route
}

// ServeHTTP :
// Dispatches the input request to the handler registered for its
// path, or to the `NotFound`/`NotAllowed` handler when no such
// route exists or the method isn't accepted.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := normalizePath(stripQuery(req.URL.String()))

	route, ok := r.routes[path]
	if !ok {
		r.notFoundHandler.ServeHTTP(w, req)
		return
	}

	if !route.accepts(req.Method) {
		r.methodNotAllowedHandler.ServeHTTP(w, req)
		return
	}

	route.Handler().ServeHTTP(w, req)
}

// stripQuery removes everything from the first '?' onward.
func stripQuery(path string) string {
	if id := strings.Index(path, "?"); id >= 0 {
		return path[:id]
	}

	return path
}

// normalizePath trims a trailing slash, except for the root path
// itself, so a route registered as `/status` also answers
// `/status/`.
func normalizePath(path string) string {
	if path == "/" || path == "" {
		return "/"
	}

	return strings.TrimSuffix(path, "/")
}
