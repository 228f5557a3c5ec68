package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"raceday-tracker/internal/engine"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/pool"
	"raceday-tracker/internal/schedule"
	"raceday-tracker/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server exposes the race board over HTTP. The day query parameter mirrors
// the original UI's navigational query string; it defaults to today.
type Server struct {
	board  *service.Board
	hub    *Hub
	logger zerolog.Logger
}

func NewServer(board *service.Board, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{board: board, hub: hub, logger: logger}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/horses", s.handleHorses).Methods(http.MethodGet)
	api.HandleFunc("/raceday", s.handleRaceDay).Methods(http.MethodGet)
	api.HandleFunc("/raceday/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/raceday/run", s.handleRunDay).Methods(http.MethodPost)
	api.HandleFunc("/raceday/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/races/{number}/start", s.handleStartRace).Methods(http.MethodPost)
	api.HandleFunc("/races/{number}/pause", s.handlePauseRace).Methods(http.MethodPost)
	api.HandleFunc("/races/{number}/reset", s.handleResetRace).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.hub.ServeWS)
	return r
}

type generateRequest struct {
	Day          string `json:"day,omitempty"`
	MinRaces     int    `json:"minRaces,omitempty"`
	MaxRaces     int    `json:"maxRaces,omitempty"`
	StartTime    string `json:"startTime,omitempty"`
	TimeInterval int    `json:"timeInterval,omitempty"`
}

func (s *Server) handleHorses(w http.ResponseWriter, r *http.Request) {
	horses, err := s.board.Horses(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, horses)
}

func (s *Server) handleRaceDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.board.SelectDate(r.Context(), s.dayParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	day.RLock()
	defer day.RUnlock()
	s.writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil {
		// An empty body means all defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Day == "" {
		req.Day = s.dayParam(r)
	}

	day, err := s.board.Generate(r.Context(), req.Day, schedule.Options{
		MinRaces:     req.MinRaces,
		MaxRaces:     req.MaxRaces,
		StartTime:    req.StartTime,
		TimeInterval: req.TimeInterval,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	day.RLock()
	defer day.RUnlock()
	s.writeJSON(w, http.StatusCreated, day)
}

func (s *Server) handleRunDay(w http.ResponseWriter, r *http.Request) {
	if err := s.board.RunDay(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "running"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.board.Stats()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStartRace(w http.ResponseWriter, r *http.Request) {
	s.raceAction(w, r, s.board.StartRace)
}

func (s *Server) handlePauseRace(w http.ResponseWriter, r *http.Request) {
	s.raceAction(w, r, s.board.PauseRace)
}

func (s *Server) handleResetRace(w http.ResponseWriter, r *http.Request) {
	s.raceAction(w, r, s.board.ResetRace)
}

func (s *Server) raceAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, raceNumber int) error) {
	number, err := strconv.Atoi(mux.Vars(r)["number"])
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid race number"})
		return
	}

	if err := action(r.Context(), number); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) dayParam(r *http.Request) string {
	if day := r.URL.Query().Get("day"); day != "" {
		return day
	}
	return time.Now().Format("2006-01-02")
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrRaceNotFound), errors.Is(err, service.ErrNoRaceDay):
		status = http.StatusNotFound
	case errors.Is(err, pist.ErrSurfaceUnavailable),
		errors.Is(err, engine.ErrRaceAlreadyRunning),
		errors.Is(err, engine.ErrRaceNotRunning),
		errors.Is(err, engine.ErrRaceCompleted):
		status = http.StatusConflict
	case errors.Is(err, schedule.ErrInsufficientHorses), errors.Is(err, schedule.ErrInvalidOptions):
		status = http.StatusBadRequest
	case errors.Is(err, pool.ErrPoolUnavailable):
		status = http.StatusBadGateway
	}

	s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
