// Package inspectx exposes a read-mostly HTTP view of an eventx runtime:
// its scopes, holders and pending callbacks. Routes are served with
// gorilla/mux for net/http servers, or mounted on a Fiber app.
//
//	srv := inspectx.New(rt, inspectx.WithTokens(tokens), inspectx.WithMetrics(metrics))
//	http.ListenAndServe(":8080", srv.Router())
//
// When a token service is configured every route except the docs requires a
// bearer token; invalidating liveness needs the admin scope.
package inspectx

import (
	"errors"
	"net/http"

	"github.com/Abraxas-365/eventcraft/auth"
	"github.com/Abraxas-365/eventcraft/docx"
	"github.com/Abraxas-365/eventcraft/errx"
	"github.com/Abraxas-365/eventcraft/eventx"
	"github.com/Abraxas-365/eventcraft/logx"
	"github.com/Abraxas-365/eventcraft/promx"
	"github.com/Abraxas-365/eventcraft/validatex"
)

var ErrorRegistry = errx.NewRegistry("INSPECTX")

var (
	ErrScopeNotFound  = ErrorRegistry.Register("SCOPE_NOT_FOUND", errx.TypeResolution, http.StatusNotFound, "scope not found")
	ErrHolderNotFound = ErrorRegistry.Register("HOLDER_NOT_FOUND", errx.TypeResolution, http.StatusNotFound, "holder not found")
	ErrMissingParam   = ErrorRegistry.Register("MISSING_PARAMETER", errx.TypeValidation, http.StatusBadRequest, "required query parameter missing")
)

// Options configures a Server.
type Options struct {
	Prefix string `validatex:"required,prefix=/"`
}

// ScopeInfo describes one scope of the runtime.
type ScopeInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Holders int    `json:"holders"`
}

// Server answers inspection requests for one runtime.
type Server struct {
	rt         *eventx.Runtime
	dispatcher *eventx.Dispatcher
	opts       Options
	tokens     *auth.TokenService
	metrics    *promx.Collector
	logger     *logx.Logger
	docs       *docx.RouterDoc
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix sets the path prefix of every route, "/events" by default.
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.opts.Prefix = prefix }
}

// WithDispatcher performs liveness invalidation through d, which must then
// have access to the runtime. Without it the server never activates a
// dispatcher.
func WithDispatcher(d *eventx.Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithTokens protects the routes with bearer tokens.
func WithTokens(tokens *auth.TokenService) Option {
	return func(s *Server) { s.tokens = tokens }
}

// WithMetrics serves the collector's registry on /metrics.
func WithMetrics(metrics *promx.Collector) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithLogger sets the request logger.
func WithLogger(logger *logx.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for rt. It fails if the options are invalid.
func New(rt *eventx.Runtime, opts ...Option) (*Server, error) {
	s := &Server{
		rt:     rt,
		opts:   Options{Prefix: "/events"},
		logger: logx.GetLogger().Named("inspectx"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validatex.Validate(s.opts); err != nil {
		return nil, err
	}
	s.docs = s.buildDocs()
	return s, nil
}

// Docs returns the route documentation.
func (s *Server) Docs() *docx.RouterDoc { return s.docs }

func (s *Server) buildDocs() *docx.RouterDoc {
	protect := func(e *docx.Endpoint, scope string) *docx.Endpoint {
		if s.tokens != nil {
			e.WithBearer(scope)
		}
		return e
	}
	return docx.NewRouterDoc(s.opts.Prefix).
		AddEndpoint(protect(docx.NewEndpoint("/scopes", docx.GET).
			WithSummary("List scopes").
			WithDescription("The default scope, open arenas and scopes without storage.").
			WithTags("scopes").
			WithResponseExample([]ScopeInfo{{Name: "default", Kind: "arena", Holders: 3}}), auth.ScopeRead)).
		AddEndpoint(protect(docx.NewEndpoint("/holders", docx.GET).
			WithSummary("List holders of a scope").
			WithTags("holders").
			WithQueryParam("scope", "scope name, the default scope when empty", false, ""), auth.ScopeRead)).
		AddEndpoint(protect(docx.NewEndpoint("/holder", docx.GET).
			WithSummary("Describe one holder").
			WithTags("holders").
			WithQueryParam("event", "fully qualified event type name", true, "").
			WithQueryParam("scope", "scope name, the default scope when empty", false, ""), auth.ScopeRead)).
		AddEndpoint(protect(docx.NewEndpoint("/liveness/invalidate", docx.POST).
			WithSummary("Re-evaluate liveness predicates on the next dispatch").
			WithTags("admin"), auth.ScopeAdmin))
}

// scopes lists every scope with its holder count.
func (s *Server) scopes() ([]ScopeInfo, error) {
	scopes := s.rt.Scopes()
	out := make([]ScopeInfo, 0, len(scopes))
	for _, scope := range scopes {
		n := 0
		if err := s.rt.ForEachHolder(scope, func(*eventx.Holder) { n++ }); err != nil {
			return nil, err
		}
		kind := "fallback"
		if _, ok := scope.(*eventx.Arena); ok {
			kind = "arena"
		}
		out = append(out, ScopeInfo{Name: scope.ScopeName(), Kind: kind, Holders: n})
	}
	return out, nil
}

// findScope resolves a scope by name; empty means the default scope.
func (s *Server) findScope(name string) (eventx.Scope, error) {
	if name == "" {
		return s.rt.DefaultScope(), nil
	}
	for _, scope := range s.rt.Scopes() {
		if scope.ScopeName() == name {
			return scope, nil
		}
	}
	return nil, ErrorRegistry.New(ErrScopeNotFound).WithDetail("scope", name)
}

func (s *Server) holders(scopeName string) ([]eventx.HolderInfo, error) {
	scope, err := s.findScope(scopeName)
	if err != nil {
		return nil, err
	}
	return s.rt.Snapshot(scope)
}

func (s *Server) holder(scopeName, event string) (*eventx.HolderInfo, error) {
	if event == "" {
		return nil, ErrorRegistry.New(ErrMissingParam).WithDetail("param", "event")
	}
	infos, err := s.holders(scopeName)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Event == event {
			return &infos[i], nil
		}
	}
	return nil, ErrorRegistry.New(ErrHolderNotFound).
		WithDetail("event", event).
		WithDetail("scope", scopeName)
}

func (s *Server) invalidate() (map[string]any, error) {
	if s.dispatcher == nil {
		return map[string]any{"generation": s.rt.InvalidateLiveness()}, nil
	}
	if err := s.dispatcher.InvalidateLiveness(); err != nil {
		return nil, err
	}
	return map[string]any{"generation": s.rt.Generation()}, nil
}

// authorize checks the Authorization header when tokens are configured.
func (s *Server) authorize(header, scope string) error {
	if s.tokens == nil {
		return nil
	}
	_, err := s.tokens.Authorize(header, scope)
	return err
}

// asError converts any failure into an errx error for the response.
func asError(err error) *errx.Error {
	var xerr *errx.Error
	if errors.As(err, &xerr) {
		return xerr
	}
	return errx.Wrap(err, err.Error(), errx.TypeInternal)
}
