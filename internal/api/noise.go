package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hushlab/hushd/internal/noise"
)

const timeFormat = time.RFC3339

// NoiseEventRequest is one decibel sample. MeasuredAt defaults to now.
type NoiseEventRequest struct {
	Decibel    float64    `json:"decibel"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
}

func (s *Server) handleNoiseEvent(w http.ResponseWriter, r *http.Request) {
	var req NoiseEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var measuredAt time.Time
	if req.MeasuredAt != nil {
		measuredAt = *req.MeasuredAt
	}

	if err := s.noise.RecordEvent(r.Context(), userID(r), req.Decibel, measuredAt); err != nil {
		s.writeNoiseError(w, r, err, "Failed to record noise event")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	var stats noise.SessionStats
	if err := json.NewDecoder(r.Body).Decode(&stats); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reputation, err := s.noise.CloseSession(r.Context(), userID(r), stats)
	if err != nil {
		s.writeNoiseError(w, r, err, "Failed to score session")
		return
	}
	writeJSON(w, http.StatusOK, reputation)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.noise.BuildReport(r.Context(), userID(r))
	if err != nil {
		s.writeNoiseError(w, r, err, "Failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMannerScore(w http.ResponseWriter, r *http.Request) {
	reputation, err := s.noise.MannerScore(r.Context(), userID(r))
	if err != nil {
		s.writeNoiseError(w, r, err, "Failed to get manner score")
		return
	}
	writeJSON(w, http.StatusOK, reputation)
}

func (s *Server) writeNoiseError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, noise.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, noise.ErrNoSession):
		writeError(w, http.StatusNotFound, "No completed session")
	case errors.Is(err, noise.ErrSessionScored):
		writeError(w, http.StatusConflict, "Session already scored")
	case errors.Is(err, noise.ErrInvalidMeasurement):
		writeError(w, http.StatusBadRequest, "Invalid measurement")
	default:
		s.logger.Error().Err(err).Str("user_id", userID(r)).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}
