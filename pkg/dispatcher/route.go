package dispatcher

import (
	"fmt"
	"net/http"
	"strings"

	"spacecombat/pkg/logger"
)

// moduleName identifies this package in trace logs.
const moduleName = "dispatcher"

// supportedMethods lists the HTTP verbs a route can be restricted
// to. `internal/runtime` only ever registers GET routes, but the
// full verb set is kept so a future route isn't silently dropped
// for using PUT/DELETE/etc.
var supportedMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"CONNECT": true,
	"OPTIONS": true,
	"TRACE":   true,
	"PATCH":   true,
}

// Route :
// Associates a single exact path with a handler and the set of
// HTTP methods allowed to reach it. Unlike the sogserver dispatcher
// this one is grounded on, a route here never carries path
// parameters: `internal/runtime` serves exactly two fixed
// endpoints (`/health`, `/status`), so there is nothing for a
// regexp-based partial matcher to buy.
//
// The `methods` defines the HTTP verbs associated to this route.
// No request that doesn't match one of these verbs will be
// directed towards this route.
//
// The `handler` defines the actual processing to call in case
// this route is triggered. It is initialized to a default `NoOp`
// handler.
//
// The `log` is used to notify of any failure to register a
// method on this route.
type Route struct {
	methods map[string]bool
	handler http.Handler
	log     logger.Logger
}

// NewRoute :
// Creates a new route with no associated methods and a `NoOp`
// default handler.
//
// The `log` is used to create the default `NoOp` handler
// associated to this route and to notify of invalid methods
// registered through `Methods`.
//
// Returns the created route.
func NewRoute(log logger.Logger) *Route {
	return &Route{
		methods: make(map[string]bool),
		handler: http.Handler(NoOp(log)),
		log:     log,
	}
}

// Handler :
// Returns the handler associated to this route. Never `nil`.
func (r *Route) Handler() http.Handler {
	return r.handler
}

// Methods :
// Registers the set of methods in input as valid methods to
// reach this route, uppercasing each one first. Methods outside
// the standard HTTP verb set are filtered out and logged.
//
// Returns a reference to this route to allow chain calling.
func (r *Route) Methods(methods ...string) *Route {
	for _, method := range methods {
		consolidated := strings.ToUpper(method)

		if !supportedMethods[consolidated] {
			r.log.Trace(logger.Error, moduleName, fmt.Sprintf("Filtering invalid HTTP method \"%s\"", method))
			continue
		}

		r.methods[consolidated] = true
	}

	return r
}

// HandlerFunc :
// Registers the provided handler func as the main processing
// function for this route.
//
// Returns this route, so that we can chain call.
func (r *Route) HandlerFunc(f func(http.ResponseWriter, *http.Request)) *Route {
	r.handler = http.HandlerFunc(f)

	return r
}

// accepts returns whether `method` is one of the methods
// registered for this route. A route with no registered methods
// accepts none, matching the router's `NotAllowed` contract.
func (r *Route) accepts(method string) bool {
	return r.methods[method]
}
