// Package server exposes training and inference over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/FlavioCFOliveira/mlpnet/internal/activations"
	"github.com/FlavioCFOliveira/mlpnet/internal/checkpoint"
	"github.com/FlavioCFOliveira/mlpnet/internal/examples"
	"github.com/FlavioCFOliveira/mlpnet/internal/matrix"
	"github.com/FlavioCFOliveira/mlpnet/internal/net"
	"github.com/FlavioCFOliveira/mlpnet/internal/store"
)

// DefaultMaxEpochs bounds a single training request when Options leaves it
// unset.
const DefaultMaxEpochs = 100000

var (
	// errBadRequest marks request validation failures.
	errBadRequest = errors.New("bad request")
	// errDiverged marks training runs whose loss is no longer finite.
	errDiverged = errors.New("training diverged")
)

// Options configure a Server.
type Options struct {
	// MaxEpochs rejects training requests above this count.
	MaxEpochs uint32
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Server holds the model store and the route table.
type Server struct {
	models    *store.Store
	maxEpochs uint32
	logger    *log.Logger
	mux       *http.ServeMux
}

// New creates a server backed by models.
func New(models *store.Store, opts Options) *Server {
	if opts.MaxEpochs == 0 {
		opts.MaxEpochs = DefaultMaxEpochs
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{
		models:    models,
		maxEpochs: opts.MaxEpochs,
		logger:    opts.Logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/examples", s.handleExamples)
	s.mux.HandleFunc("POST /api/train", s.handleTrain)
	s.mux.HandleFunc("POST /api/train/stream", s.handleTrainStream)
	s.mux.HandleFunc("POST /api/eval", s.handleEval)
	s.mux.HandleFunc("GET /api/models", s.handleListModels)
	s.mux.HandleFunc("POST /api/models", s.handleImportModel)
	s.mux.HandleFunc("GET /api/models/{id}", s.handleModelInfo)
	s.mux.HandleFunc("DELETE /api/models/{id}", s.handleDeleteModel)
	s.mux.HandleFunc("GET /api/models/{id}/checkpoint", s.handleCheckpoint)
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until the listener fails.
func (s *Server) ListenAndServe(addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.logger.Printf("listening addr=%s max_epochs=%d", addr, s.maxEpochs)
	return srv.ListenAndServe()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("method=%s path=%s status=%d duration=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v before touching the response, so an unencodable value
// (NaN, +Inf) becomes a 500 instead of a 200 with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		msg, _ := json.Marshal(errorResponse{Error: "encode response: " + err.Error()})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(append(msg, '\n'))
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(b, '\n'))
	return err
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Printf("write response error=%v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("internal error=%v", err)
	}
	s.respond(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps caller mistakes to 4xx and everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errDiverged):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, examples.ErrUnknownExample),
		errors.Is(err, activations.ErrUnknownActivation),
		errors.Is(err, net.ErrInvalidArchitecture),
		errors.Is(err, net.ErrInvalidNetwork),
		errors.Is(err, matrix.ErrDimensionMismatch),
		errors.Is(err, checkpoint.ErrFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
