package api

import (
	"errors"
	"net/http"

	"github.com/hushlab/hushd/internal/occupancy"
	"github.com/hushlab/hushd/internal/storage"
)

// SessionResponse is the wire shape of a usage session.
type SessionResponse struct {
	ID          string  `json:"id"`
	CheckIn     string  `json:"checkIn"`
	CheckOut    *string `json:"checkOut,omitempty"`
	Status      string  `json:"status"`
	UsedMinutes int     `json:"usedMinutes"`
}

func sessionResponse(session *storage.UsageSession) SessionResponse {
	resp := SessionResponse{
		ID:          session.ID,
		CheckIn:     session.CheckIn.Format(timeFormat),
		Status:      string(session.Status),
		UsedMinutes: session.UsedMinutes,
	}
	if session.CheckOut != nil {
		out := session.CheckOut.Format(timeFormat)
		resp.CheckOut = &out
	}
	return resp
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.History(r.Context(), userID(r))
	if err != nil {
		s.writeOccupancyError(w, r, err, "Failed to list sessions")
		return
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, sessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": responses,
		"count":    len(responses),
	})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.CheckIn(r.Context(), userID(r))
	if err != nil {
		s.writeOccupancyError(w, r, err, "Check-in failed")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.CheckOut(r.Context(), userID(r))
	if err != nil {
		s.writeOccupancyError(w, r, err, "Check-out failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Expire(r.Context(), userID(r))
	if err != nil {
		s.writeOccupancyError(w, r, err, "Expire failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) writeOccupancyError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, occupancy.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, occupancy.ErrNoOpenSession):
		writeError(w, http.StatusConflict, "No open session")
	case errors.Is(err, occupancy.ErrAlreadyCheckedIn):
		writeError(w, http.StatusConflict, "Already checked in")
	default:
		s.logger.Error().Err(err).Str("user_id", userID(r)).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, logMsg)
	}
}
