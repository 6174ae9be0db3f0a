// Package api serves the current signals and the tracked signal over HTTP
// and pushes updates over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"signal-hud.klederson.com/internal/db"
	"signal-hud.klederson.com/internal/scan"
	"signal-hud.klederson.com/internal/signal"
)

// StatusProvider reports the scan loops; satisfied by *scan.Scheduler.
type StatusProvider interface {
	Status() []scan.LoopStatus
}

// HistoryProvider answers sighting history queries; satisfied by *db.DB.
type HistoryProvider interface {
	History(ctx context.Context, src signal.SourceType, identifier string, limit int) ([]db.Sighting, error)
}

// Options wires the server to the rest of the process. Status and History
// are optional.
type Options struct {
	Node    string
	Store   *signal.Store
	Tracker *signal.Tracker
	Anchors map[string]signal.Position
	Status  StatusProvider
	History HistoryProvider
	Log     logrus.FieldLogger
}

type Server struct {
	opts    Options
	hub     *Hub
	log     logrus.FieldLogger
	started time.Time
	mux     *http.ServeMux
}

func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	log := opts.Log.WithField("component", "api")
	s := &Server{
		opts:    opts,
		hub:     NewHub(opts.Store, opts.Tracker, log),
		log:     log,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/signals", s.handleSignals)
	s.mux.HandleFunc("GET /api/signals/{source}", s.handleSourceSignals)
	s.mux.HandleFunc("GET /api/tracked", s.handleTracked)
	s.mux.HandleFunc("POST /api/track", s.handleTrack)
	s.mux.HandleFunc("POST /api/track/clear", s.handleClear)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/history/{source}/{identifier}", s.handleHistory)
	s.mux.Handle("GET /ws", s.hub)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr and runs the push hub until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	all := s.opts.Store.Snapshot().All()
	writeJSON(w, http.StatusOK, signalsResponse{Signals: all, Count: len(all)})
}

func (s *Server) handleSourceSignals(w http.ResponseWriter, r *http.Request) {
	src, err := signal.ParseSourceType(r.PathValue("source"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	readings := s.opts.Store.Snapshot().Batch(src)
	if readings == nil {
		readings = []signal.SignalReading{}
	}
	writeJSON(w, http.StatusOK, signalsResponse{Signals: readings, Count: len(readings)})
}

func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request) {
	tracked := s.opts.Tracker.Resolve(s.opts.Store.Snapshot())
	writeJSON(w, http.StatusOK, trackedView(tracked))
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := signal.ParseSourceType(req.SourceType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, errors.New("identifier is required"))
		return
	}

	s.opts.Tracker.Select(src, req.Identifier)
	tracked := s.opts.Tracker.Resolve(s.opts.Store.Snapshot())
	s.log.WithFields(logrus.Fields{"source": src, "identifier": req.Identifier}).Info("tracking signal")
	writeJSON(w, http.StatusOK, trackedView(tracked))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.opts.Tracker.Clear()
	s.log.Info("tracking cleared")
	writeJSON(w, http.StatusOK, trackedView(s.opts.Tracker.Current()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Node:    s.opts.Node,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Anchors: s.opts.Anchors,
		Counts:  s.opts.Store.Snapshot().CountBySource(),
		Loops:   []scan.LoopStatus{},
		Clients: s.hub.Count(),
		Time:    time.Now(),
	}
	if resp.Anchors == nil {
		resp.Anchors = map[string]signal.Position{}
	}
	if s.opts.Status != nil {
		resp.Loops = s.opts.Status.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, errors.New("sightings log is disabled"))
		return
	}
	src, err := signal.ParseSourceType(r.PathValue("source"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	sightings, err := s.opts.History.History(r.Context(), src, r.PathValue("identifier"), limit)
	if err != nil {
		s.log.WithError(err).Error("history query")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sightings == nil {
		sightings = []db.Sighting{}
	}
	writeJSON(w, http.StatusOK, sightings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
