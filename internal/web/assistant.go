package web

import (
	"net/http"
	"strconv"

	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/planner"
)

type assistantBody struct {
	Greeting     string                  `json:"greeting"`
	QuickActions []string                `json:"quickActions"`
	Conversation *assistant.Conversation `json:"conversation,omitempty"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request, sf *surface) {
	body := assistantBody{Greeting: assistant.Greeting, QuickActions: assistant.QuickActions}
	if conv, ok := s.cfg.Assistant.History(sf.teacherID); ok {
		body.Conversation = conv
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, sf *surface) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Text == "" {
		writeError(w, &planner.ValidationError{Rule: "text", Message: "Please type a message"})
		return
	}
	reply, err := s.cfg.Assistant.Ask(r.Context(), sf.teacherID, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleResetChat(w http.ResponseWriter, r *http.Request, sf *surface) {
	if err := s.cfg.Assistant.Reset(sf.teacherID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request, sf *surface) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, &planner.ValidationError{Rule: "index", Message: "Invalid message index"})
		return
	}
	if err := s.cfg.Assistant.Flag(sf.teacherID, index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
