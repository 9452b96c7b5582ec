// Package httpapi implements the HTTP transport, bearer-token
// authentication, and request logging in front of the broker registry.
// None of this package's correctness depends on anything but the
// Broker/Registry contracts in package broker.
//
// Ground: the routing and scoped-middleware shape mirrors
// original_source/min_creds/src/main.rs's actix-web App, where
// `GET /` sits outside the authenticated scope and `POST /get` /
// `POST /release` sit inside a sub-router wrapped in bearer auth; the
// middleware wrapping style is adapted from
// worker/httpserver/httpcontext.BasicAuthHandler.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dlr-eoc/min-creds/broker"
	"github.com/dlr-eoc/min-creds/logger"
)

var log = logger.GetLogger("httpapi")

// Server is the HTTP front end for a broker registry.
type Server struct {
	registry *broker.Registry
	router   *mux.Router
}

// NewServer builds the router for registry, mounted under basePath (the
// configured web_path).
func NewServer(registry *broker.Registry, basePath string) *Server {
	s := &Server{registry: registry}

	root := mux.NewRouter()
	root.HandleFunc(basePath, s.handleOverview).Methods(http.MethodGet)

	authenticated := root.PathPrefix(basePath).Subrouter()
	authenticated.Use(s.bearerAuthMiddleware)
	authenticated.HandleFunc(joinPath(basePath, "get"), s.handleGet).Methods(http.MethodPost)
	authenticated.HandleFunc(joinPath(basePath, "release"), s.handleRelease).Methods(http.MethodPost)

	root.Use(requestLoggingMiddleware)
	s.router = root
	return s
}

func joinPath(base, op string) string {
	if base == "" || base[len(base)-1] != '/' {
		return base + "/" + op
	}
	return base + op
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start)).
			Debug("handled request")
	})
}

func clientName(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return "<empty user-agent>"
	}
	return ua
}
