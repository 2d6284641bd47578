// Package httpapi serves the concierge chat API: each POST /v1/chat turn
// updates the session's profile from the message and returns the retrieved,
// grounded context block for the answer step.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joelkehle/activity-concierge/internal/profile"
	"github.com/joelkehle/activity-concierge/internal/retrieval"
)

// ProfileExtractor updates a profile from one chat message.
type ProfileExtractor interface {
	Extract(ctx context.Context, existing profile.Profile, message string, history [][2]string) (profile.Profile, error)
}

// Retriever runs one retrieval turn.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (retrieval.Result, error)
}

var (
	_ ProfileExtractor = (*profile.Extractor)(nil)
	_ Retriever        = (*retrieval.Retriever)(nil)
)

// session is one user's conversation state. Its mutex serializes turns so
// profile updates never race within a session.
type session struct {
	mu      sync.Mutex
	profile profile.Profile
	history [][2]string
}

type Server struct {
	extractor ProfileExtractor
	retriever Retriever

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewServer builds the chat handler. A nil extractor disables profile
// extraction; turns then retrieve on the raw message alone.
func NewServer(extractor ProfileExtractor, retriever Retriever) http.Handler {
	s := &Server{
		extractor: extractor,
		retriever: retriever,
		sessions:  map[string]*session{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/profile", s.handleProfile)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) getSession(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Intensity string `json:"intensity"`
}

type chatResponse struct {
	OK             bool            `json:"ok"`
	SessionID      string          `json:"session_id"`
	Profile        profile.Profile `json:"profile"`
	ChosenHeadings []string        `json:"chosen_headings"`
	EventCount     int             `json:"event_count"`
	Context        string          `json:"context"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sess := s.getSession(req.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx := r.Context()
	if s.extractor != nil {
		updated, err := s.extractor.Extract(ctx, sess.profile, req.Message, sess.history)
		if err != nil {
			log.Printf("httpapi profile_extract_failed session=%s err=%q", req.SessionID, err.Error())
			writeError(w, http.StatusBadGateway, "profile extraction unavailable")
			return
		}
		sess.profile = updated
	}

	question := profile.BuildRetrievalQuery(req.Message, sess.profile, sess.history)
	res, err := s.retriever.Retrieve(ctx, retrieval.Query{
		Question:  question,
		Profile:   sess.profile,
		Intensity: req.Intensity,
	})
	if err != nil {
		var se *retrieval.StageError
		if errors.As(err, &se) {
			log.Printf("httpapi retrieval_failed session=%s stage=%s err=%q", req.SessionID, se.Stage, err.Error())
		} else {
			log.Printf("httpapi retrieval_failed session=%s err=%q", req.SessionID, err.Error())
		}
		writeError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}

	sess.history = append(sess.history, [2]string{req.Message, res.Context})
	writeJSON(w, http.StatusOK, chatResponse{
		OK:             true,
		SessionID:      req.SessionID,
		Profile:        sess.profile,
		ChosenHeadings: res.ChosenHeadings,
		EventCount:     len(res.Events),
		Context:        res.Context,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	sess.mu.Lock()
	p := sess.profile
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": id, "profile": p})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
