package server

import (
	"net/http"
	"strings"

	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/seance"
)

func (s *Server) handleListGraves(w http.ResponseWriter, r *http.Request) {
	graves, err := s.graves.LoadAll(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("load graveyard", "err", err)
		writeError(w, http.StatusInternalServerError, "the graveyard is unreachable")
		return
	}
	if graves == nil {
		graves = []graveyard.Grave{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"graves": graves})
}

func (s *Server) handleClearGraves(w http.ResponseWriter, r *http.Request) {
	if err := s.graves.Clear(r.Context()); err != nil {
		observe.Logger(r.Context()).Error("clear graveyard", "err", err)
		writeError(w, http.StatusInternalServerError, "the graveyard is unreachable")
		return
	}
	s.audio.Play(horror.KindScream)
	w.WriteHeader(http.StatusNoContent)
}

type askBody struct {
	Message string `json:"message"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

type resetBody struct {
	Code string `json:"code"`
}

func (s *Server) handleSeanceHistory(w http.ResponseWriter, _ *http.Request) {
	msgs := s.medium.History()
	if msgs == nil {
		msgs = []seance.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleAsk types the question, waits for the medium and whispers the
// answer. A failed séance answers 502 with [seance.SilentReply].
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body askBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.audio.Play(horror.KindTypingTick)
	reply, err := s.medium.Ask(r.Context(), body.Message)
	if err != nil {
		observe.Logger(r.Context()).Warn("seance failed", "err", err)
		writeError(w, http.StatusBadGateway, seance.SilentReply)
		return
	}
	s.audio.Play(horror.KindWhisper)
	writeJSON(w, http.StatusOK, askResponse{Reply: reply})
}

// handleResetSeance starts a new séance over the posted code.
func (s *Server) handleResetSeance(w http.ResponseWriter, r *http.Request) {
	var body resetBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.medium.Reset(body.Code)
	s.audio.Play(horror.KindWhisper)
	w.WriteHeader(http.StatusNoContent)
}
