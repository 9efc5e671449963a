// Package httpapi exposes the decision engine over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/fetch"
	"github.com/Harry10012003/decision-support-tool/internal/logger"
	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/Harry10012003/decision-support-tool/internal/parser"
	"github.com/Harry10012003/decision-support-tool/internal/report"
)

// Fetcher downloads the document named by source_url.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Document, error)
}

// Pinger reports whether a dependency is healthy.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the defaults and limits applied to every request.
type Config struct {
	MaxBodyBytes         int64
	MaxOptions           int
	MaxStates            int
	ProbabilityTolerance float64
	DefaultSense         models.Sense
	DefaultAlpha         float64
}

// Server routes analysis requests to the decision engine.
type Server struct {
	cfg     Config
	fetcher Fetcher
	health  Pinger
	router  chi.Router
}

// NewServer creates the API. fetcher and health may be nil: source_url requests are then
// rejected and /healthz only reports the process as up.
func NewServer(cfg Config, fetcher Fetcher, health Pinger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		health:  health,
		router:  chi.NewRouter(),
	}

	s.router.Use(assignRequestID)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/example", s.handleExample)
	})
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AnalyzeRequest is the body of POST /v1/analyze. Exactly one of Values, Table and SourceURL
// supplies the payoffs; Probabilities, when set, replace any probability row in the table.
type AnalyzeRequest struct {
	Options       []string    `json:"options,omitempty"`
	States        []string    `json:"states,omitempty"`
	Values        [][]float64 `json:"values,omitempty"`
	Probabilities []float64   `json:"probabilities,omitempty"`
	Table         string      `json:"table,omitempty"`
	SourceURL     string      `json:"source_url,omitempty"`
	Sense         string      `json:"sense,omitempty"`
	Alpha         *float64    `json:"alpha,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// requestError carries the status code a failure should be answered with.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logger.Warn("health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}

	var req AnalyzeRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, &requestError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		s.writeError(w, r, badRequest(fmt.Errorf("invalid JSON body: %w", err)))
		return
	}

	ev, err := s.evaluate(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReport(w, r, ev, format)
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		s.writeError(w, r, badRequest(err))
		return
	}
	ev, err := s.evaluate(r.Context(), &AnalyzeRequest{
		Table: parser.ExampleTable(),
		Sense: r.URL.Query().Get("sense"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReport(w, r, ev, format)
}

// evaluate resolves the payoff source and the request options, then runs the analysis.
func (s *Server) evaluate(ctx context.Context, req *AnalyzeRequest) (*decision.Evaluation, error) {
	table, err := s.resolveTable(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Probabilities != nil {
		table.Probabilities = req.Probabilities
	}
	if err := table.CheckLimits(s.cfg.MaxOptions, s.cfg.MaxStates); err != nil {
		return nil, badRequest(err)
	}

	sense := s.cfg.DefaultSense
	if req.Sense != "" {
		if sense, err = models.ParseSense(req.Sense); err != nil {
			return nil, badRequest(err)
		}
	}
	alpha := s.cfg.DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	ev, err := decision.Evaluate(decision.Request{
		Matrix:        &table.Matrix,
		Probabilities: table.Probabilities,
		Sense:         sense,
		Alpha:         alpha,
		Tolerance:     s.cfg.ProbabilityTolerance,
	})
	if err != nil {
		// Evaluate only fails on caller input
		return nil, badRequest(err)
	}
	return ev, nil
}

func (s *Server) resolveTable(ctx context.Context, req *AnalyzeRequest) (*parser.Table, error) {
	sources := 0
	for _, set := range []bool{req.Values != nil, req.Table != "", req.SourceURL != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, badRequest(errors.New("exactly one of values, table and source_url must be set"))
	}

	switch {
	case req.Values != nil:
		table := &parser.Table{Matrix: models.PayoffMatrix{
			Options: req.Options,
			States:  req.States,
			Values:  req.Values,
		}}
		if err := table.Matrix.Validate(); err != nil {
			return nil, badRequest(err)
		}
		return table, nil

	case req.Table != "":
		table, err := parser.ParseText(req.Table)
		if err != nil {
			return nil, badRequest(err)
		}
		return table, nil

	default:
		if s.fetcher == nil {
			return nil, badRequest(errors.New("source_url is not enabled on this server"))
		}
		doc, err := s.fetcher.Fetch(ctx, req.SourceURL)
		if err != nil {
			if errors.Is(err, fetch.ErrUnsupportedScheme) || errors.Is(err, fetch.ErrTooLarge) || errors.Is(err, fetch.ErrForbiddenAddress) {
				return nil, badRequest(err)
			}
			return nil, &requestError{status: http.StatusBadGateway, err: fmt.Errorf("failed to fetch source_url: %w", err)}
		}
		table, err := parser.ParseDocument(doc.Name, bytes.NewReader(doc.Data))
		if err != nil {
			return nil, badRequest(fmt.Errorf("%s: %w", doc.Name, err))
		}
		return table, nil
	}
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, ev *decision.Evaluation, format report.Format) {
	body, err := report.Render(ev, format)
	if errors.Is(err, report.ErrNonFinite) {
		s.writeError(w, r, &requestError{
			status: http.StatusUnprocessableEntity,
			err:    fmt.Errorf("%w; scale the payoffs down or ask for format=text, markdown, html or csv", err),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("render %s: %w", format, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = reqErr.status
		msg = reqErr.Error()
	} else {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}

	writeJSON(w, status, errorResponse{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

func requestFormat(r *http.Request) (report.Format, error) {
	name := r.URL.Query().Get("format")
	if name == "" {
		return report.FormatJSON, nil
	}
	return report.ParseFormat(name)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response: %v", err)
	}
}

// assignRequestID gives requests without an X-Request-Id header a random one, which
// middleware.RequestID then stores in the context. The id is echoed back to the caller.
func assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("%s %s %d %dB %s [%s] from %s", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()), r.RemoteAddr)
	})
}
