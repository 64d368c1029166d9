package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
)

// Server exposes the detector over a small JSON HTTP API.
type Server struct {
	service       *core.DetectorService
	logger        *zap.Logger
	listenAddr    string
	snippetLength int
	httpServer    *http.Server
}

// NewServer creates a new HTTP API server
func NewServer(
	service *core.DetectorService,
	logger *zap.Logger,
	listenAddr string,
	snippetLength int,
) *Server {
	return &Server{
		service:       service,
		logger:        logger,
		listenAddr:    listenAddr,
		snippetLength: snippetLength,
	}
}

// Start starts the HTTP server in a background goroutine
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler builds the route table. Exposed separately so tests can drive
// it through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /fetch_gmail", s.handleFetchGmail)
	return allowCORS(mux)
}

// allowCORS lets browser front-ends on other origins call the API
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Phishing Email Detection API is Running")
}

type predictRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == nil {
		s.writeError(w, core.NewValidationError("No text provided"))
		return
	}

	result, err := s.service.ClassifyText(r.Context(), *req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

type fetchResponse struct {
	EmailSnippet   string                     `json:"email_snippet"`
	BodyPrediction *core.ClassificationResult `json:"body_prediction"`
	SenderInfo     *core.SenderAnalysis       `json:"sender_info"`
}

func (s *Server) handleFetchGmail(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.FetchLatestUnread(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	snippet := utils.Preview(html.UnescapeString(res.Snippet), s.snippetLength)
	s.writeJSON(w, http.StatusOK, fetchResponse{
		EmailSnippet:   snippet,
		BodyPrediction: res.Prediction,
		SenderInfo:     res.Sender,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps kinded service errors onto HTTP statuses. Client
// faults keep a bare error message; server faults also carry the kind
// so callers can tell an upstream failure from a local one.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)

	var status int
	switch kind {
	case core.KindValidation:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindRemote:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: errMessage(err)}
	if status >= 500 {
		resp.Kind = string(kind)
		s.logger.Error("request failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	s.writeJSON(w, status, resp)
}

// errMessage strips the wrapped cause so responses do not leak
// upstream detail, keeping only the kinded error's own message
func errMessage(err error) string {
	var kerr *core.Error
	if errors.As(err, &kerr) {
		return kerr.Msg
	}
	return err.Error()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
