package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"stringstack/internal/protocol"
	"stringstack/internal/session"
	"stringstack/internal/stack"
)

type createSessionRequest struct {
	Capacity *int   `json:"capacity"`
	Label    string `json:"label"`
}

type pushRequest struct {
	Value string `json:"value"`
}

type sessionResponse struct {
	*session.Session
	Items []string `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps a manager error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTerminated), errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, session.ErrMaxSessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, stack.ErrInvalidCapacity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if req.Capacity == nil {
		writeError(w, http.StatusBadRequest, errors.New("capacity is required"))
		return
	}

	sess, err := s.sessionMgr.Create(*req.Capacity, req.Label)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	// Broadcast to WebSocket clients.
	s.subscribeAllClients(sess.ID)
	s.broadcastSessionUpdate(sess)

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionMgr.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessionMgr.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	items, err := s.sessionMgr.Items(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if items == nil {
		items = []string{}
	}

	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Items: items})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := protocol.ValidateToken(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.sessionMgr.Push(id, req.Value)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.broadcastSessionUpdate(&res.Session)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.sessionMgr.Stop(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.broadcastSessionUpdate(&res.Session)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.sessionMgr.Kill(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if sess, err := s.sessionMgr.Get(id); err == nil {
		s.broadcastSessionUpdate(sess)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}
