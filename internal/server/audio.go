package server

import (
	"net/http"
	"strings"

	"github.com/MrWong99/necromancer/internal/horror"
)

// kindFeedMe is the route name of [Audio.PlayFeedMe]. It is spoken rather
// than synthesised, so it is not a [horror.Kind].
const kindFeedMe = "feedme"

type effectResponse struct {
	Kind   string `json:"kind"`
	Played bool   `json:"played"`
}

// handleEffect plays one effect. A dropped effect (muted, debounced or not
// yet initialised) still answers 200 with played set to false.
func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("kind"))
	if name == kindFeedMe {
		s.audio.PlayFeedMe()
		writeJSON(w, http.StatusOK, effectResponse{Kind: name, Played: !s.audio.Muted()})
		return
	}
	kind, err := horror.ParseKind(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	v := s.audio.Play(kind)
	writeJSON(w, http.StatusOK, effectResponse{Kind: string(kind), Played: v != nil})
}

type muteBody struct {
	Muted *bool `json:"muted"`
}

type muteResponse struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleGetMute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, muteResponse{Muted: s.audio.Muted()})
}

func (s *Server) handleSetMute(w http.ResponseWriter, r *http.Request) {
	var body muteBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Muted == nil {
		writeError(w, http.StatusBadRequest, "muted is required")
		return
	}
	s.audio.SetMuted(*body.Muted)
	writeJSON(w, http.StatusOK, muteResponse{Muted: s.audio.Muted()})
}

type speakBody struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var body speakBody
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.audio.Speak(body.Text)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSpeechControl(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("action") {
	case "pause":
		s.audio.PauseSpeech()
	case "resume":
		s.audio.ResumeSpeech()
	case "stop":
		s.audio.StopSpeech()
	default:
		writeError(w, http.StatusNotFound, "unknown speech action "+r.PathValue("action"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sanityResponse struct {
	Level int `json:"level"`
}

func (s *Server) handleGetSanity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sanityResponse{Level: s.sanity.Level()})
}

func (s *Server) handleRestoreSanity(w http.ResponseWriter, _ *http.Request) {
	s.sanity.Restore()
	writeJSON(w, http.StatusOK, sanityResponse{Level: s.sanity.Level()})
}

// handleEnter is called when a visitor arrives. It may scare them.
func (s *Server) handleEnter(w http.ResponseWriter, _ *http.Request) {
	s.haunter.OnEnter()
	w.WriteHeader(http.StatusNoContent)
}

// handleKeystroke is called while the visitor types code. Typing calms
// them down.
func (s *Server) handleKeystroke(w http.ResponseWriter, _ *http.Request) {
	s.haunter.OnKeystroke()
	if s.sanity != nil {
		s.sanity.Restore()
	}
	w.WriteHeader(http.StatusNoContent)
}
