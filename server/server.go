// Package server exposes the stamping and composition operations over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/compose"
	"github.com/wudi/pdfstamp/ledger"
	"github.com/wudi/pdfstamp/observability"
	"github.com/wudi/pdfstamp/stamp"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 64 << 20

// multipartMemory is held in memory before parts spill to disk.
const multipartMemory = 32 << 20

// Server routes requests to a stamp dispatcher and a composition pipeline.
type Server struct {
	dispatcher *stamp.Dispatcher
	pipeline   *compose.Pipeline
	ads        adsource.Source
	adURL      string
	ledger     ledger.Recorder
	logger     observability.Logger
	auth       *Authenticator
	root       string
	maxBody    int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger records every job. Failures are logged, never returned.
func WithLedger(r ledger.Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.ledger = r
		}
	}
}

// WithAds sets the ad source and the feed URL used when a request names none.
func WithAds(src adsource.Source, defaultURL string) Option {
	return func(s *Server) {
		s.ads = src
		s.adURL = defaultURL
	}
}

// WithAuthenticator requires a bearer token on every stamping route.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithStorageRoot confines file-path requests to root.
func WithStorageRoot(root string) Option {
	return func(s *Server) { s.root = root }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New returns a server over d and p.
func New(d *stamp.Dispatcher, p *compose.Pipeline, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		pipeline:   p,
		ledger:     ledger.Nop{},
		logger:     observability.NopLogger{},
		root:       ".",
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = ledger.BestEffort{Recorder: s.ledger, Logger: s.logger}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/stamp", func(api chi.Router) {
		if s.auth != nil {
			api.Use(s.auth.Middleware)
		}
		api.Use(s.limitBody)
		api.Post("/", s.handleStamp)
		api.Post("/file-path", s.handleFilePath)
		api.Post("/ads", s.handleAds)
		api.Post("/metadata-page", s.handleMetadataPage)
		api.Post("/dynamic", s.handleDynamic)
	})
	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > s.maxBody {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("http request",
				observability.String("request_id", middleware.GetReqID(r.Context())),
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.Int("status", ww.Status()),
				observability.Int("bytes", ww.BytesWritten()),
				observability.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}
