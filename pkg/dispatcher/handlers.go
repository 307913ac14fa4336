package dispatcher

import (
	"fmt"
	"net/http"

	"spacecombat/pkg/logger"
)

// NotFound :
// Describes an empty `HTTP` handler which will only log a message
// through the provided logger whenever a request is received on
// the associated route.
//
// The `log` represents the logger object to use to notify of any
// connexion request on this endpoint.
//
// Returns a callable function that will log a message and return
// a `404` code in case of an incoming connection.
func NotFound(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, moduleName, fmt.Sprintf("Handling request from \"%v\" in not found handler", r.URL))

		http.NotFound(w, r)
	}
}

// NotAllowed :
// Describes an empty `HTTP` handler which will only log a message
// through the provided logger whenever a request is received on
// the associated route. It typically indicates that the method
// used to contact this endpoint is not supported for now.
//
// The `log` represents the logger object to use to notify of any
// connexion request on this endpoint.
//
// Returns a callable function that will log a message and return
// a `405` code in case of an incoming connection.
func NotAllowed(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, moduleName, fmt.Sprintf("Handling request from \"%v\" in not allowed handler", r.URL))

		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NoOp :
// Describes an empty `HTTP` handler which will only log a message
// through the provided logger whenever a request is received on
// the associated route. The return code will indicate that the
// request was successful but nothing really happened. Used as a
// route's default handler until `HandlerFunc` replaces it.
//
// The `log` represents the logger object to use to notify of any
// connexion request on this endpoint.
//
// Returns a callable function that will log a message and return
// a `200` code in case of an incoming connection.
func NoOp(log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Trace(logger.Warning, moduleName, fmt.Sprintf("Handling request from \"%v\" in no op handler", r.URL))
	}
}
