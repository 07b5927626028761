package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/geniass/printer-status/pkg/alert"
	dataio "github.com/geniass/printer-status/pkg/io"
)

// Source provides the most recent poll cycle, if there is one yet.
type Source interface {
	Latest() (dataio.Cycle, bool)
}

type Server struct {
	source     Source
	base       BaseContext
	thresholds alert.Thresholds
	log        *zap.Logger
}

// NewServer serves the latest cycle rendered the same way as the emailed report.
func NewServer(source Source, base BaseContext, thresholds alert.Thresholds, log *zap.Logger) *Server {
	return &Server{source: source, base: base, thresholds: thresholds, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/", s.latestReport).Methods("GET")
	r.HandleFunc("/api/v1/cycle", s.latestCycle).Methods("GET")
	r.HandleFunc("/api/v1/records", s.latestRecords).Methods("GET")
	r.HandleFunc("/api/v1/alerts", s.latestAlerts).Methods("GET")

	return r
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) latest(w http.ResponseWriter) (dataio.Cycle, bool) {
	c, ok := s.source.Latest()
	if !ok {
		http.Error(w, "no poll cycle has completed yet", http.StatusServiceUnavailable)
	}
	return c, ok
}

func (s *Server) latestReport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.latest(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := RenderReport(&buf, NewReportContext(s.base, s.thresholds, c)); err != nil {
		s.log.Error("render report", zap.String("cycle", c.ID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) latestCycle(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.latest(w); ok {
		s.writeJSON(w, c)
	}
}

func (s *Server) latestRecords(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.latest(w); ok {
		s.writeJSON(w, SortRecords(c.Records))
	}
}

func (s *Server) latestAlerts(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.latest(w); ok {
		s.writeJSON(w, c.Alerts)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}
