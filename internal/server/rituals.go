package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/internal/ritual"
)

// ritualRequest is the body of POST /v1/rituals and /v1/rituals/bundle.
// Naming an example fills in any field left empty.
type ritualRequest struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Code       string `json:"code"`
	Mode       string `json:"mode"`
	Example    string `json:"example,omitempty"`
}

func (s *Server) handleRitual(w http.ResponseWriter, r *http.Request) {
	req, status, err := s.readRitual(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	out, err := s.summoner.Summon(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, ritual.FailureText)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleBundle runs the full ritual whatever mode was asked for and answers
// with the zipped artifacts.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	req, status, err := s.readRitual(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	req.Mode = ritual.ModeFullRitual
	out, err := s.summoner.Summon(r.Context(), req)
	if err != nil || out.Artifacts == nil {
		writeError(w, http.StatusBadGateway, ritual.FailureText)
		return
	}

	var buf bytes.Buffer
	if err := ritual.Bundle(&buf, req, *out.Artifacts); err != nil {
		observe.Logger(r.Context()).Error("bundle failed", "err", err)
		s.audio.Play(horror.KindScream)
		writeError(w, http.StatusInternalServerError, "could not pack the artifacts")
		return
	}
	s.audio.Play(horror.KindGlitch)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ritual.BundleName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"examples":         ritual.Examples,
		"source_languages": ritual.SourceLanguages,
		"target_languages": ritual.TargetLanguages,
		"modes":            ritual.Modes,
	})
}

// readRitual decodes and validates a ritual request. On failure it returns
// the HTTP status to answer with.
func (s *Server) readRitual(w http.ResponseWriter, r *http.Request) (ritual.Request, int, error) {
	var body ritualRequest
	if err := decode(w, r, &body); err != nil {
		return ritual.Request{}, http.StatusBadRequest, err
	}
	if body.Example != "" {
		ex, ok := ritual.FindExample(body.Example)
		if !ok {
			return ritual.Request{}, http.StatusNotFound, errors.New("unknown example " + body.Example)
		}
		body.SourceLang = orDefault(body.SourceLang, ex.SourceLang)
		body.TargetLang = orDefault(body.TargetLang, ex.TargetLang)
		body.Code = orDefault(body.Code, ex.Code)
	}
	if strings.TrimSpace(body.Code) == "" {
		return ritual.Request{}, http.StatusBadRequest, errors.New("no code to resurrect")
	}
	mode, err := ritual.ParseMode(body.Mode)
	if err != nil {
		return ritual.Request{}, http.StatusBadRequest, err
	}
	return ritual.Request{
		SourceLang: body.SourceLang,
		TargetLang: body.TargetLang,
		Code:       body.Code,
		Mode:       mode,
	}, 0, nil
}

// orDefault returns a unless it is empty, then b.
func orDefault(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
