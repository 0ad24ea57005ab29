package inspectx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Abraxas-365/eventcraft/auth"
)

// Router returns a gorilla/mux router serving every route under the prefix,
// plus /metrics when a collector was configured.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix(s.opts.Prefix).Subrouter()
	api.Handle("/docs", s.docs).Methods(http.MethodGet)
	api.HandleFunc("/scopes", s.handle(auth.ScopeRead, func(*http.Request) (any, error) {
		return s.scopes()
	})).Methods(http.MethodGet)
	api.HandleFunc("/holders", s.handle(auth.ScopeRead, func(req *http.Request) (any, error) {
		return s.holders(req.URL.Query().Get("scope"))
	})).Methods(http.MethodGet)
	api.HandleFunc("/holder", s.handle(auth.ScopeRead, func(req *http.Request) (any, error) {
		q := req.URL.Query()
		return s.holder(q.Get("scope"), q.Get("event"))
	})).Methods(http.MethodGet)
	api.HandleFunc("/liveness/invalidate", s.handle(auth.ScopeAdmin, func(*http.Request) (any, error) {
		return s.invalidate()
	})).Methods(http.MethodPost)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// handle adapts a route function: it checks the token, then writes the
// result as JSON or the failure through errx.
func (s *Server) handle(scope string, fn func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := s.authorize(req.Header.Get("Authorization"), scope); err != nil {
			asError(err).ToHTTP(w)
			return
		}
		result, err := fn(req)
		if err != nil {
			s.logger.Debug("%s %s failed: %v", req.Method, req.URL.Path, err)
			asError(err).ToHTTP(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			s.logger.Error("encoding response for %s: %v", req.URL.Path, err)
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.logger.Debug("%s %s (%s)", req.Method, req.URL.Path, time.Since(start))
	})
}
