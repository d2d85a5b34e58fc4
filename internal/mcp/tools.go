package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/necromancer/internal/altar"
	"github.com/MrWong99/necromancer/internal/graveyard"
	"github.com/MrWong99/necromancer/internal/horror"
	"github.com/MrWong99/necromancer/internal/ritual"
)

// Tool names.
const (
	ToolPerformRitual = "perform_ritual"
	ToolListGraveyard = "list_graveyard"
	ToolPlayEffect    = "play_effect"
	ToolSpeak         = "speak"
)

// Per-tool hard timeouts. A full ritual makes four model calls.
const (
	ritualTimeout = 3 * time.Minute
	storeTimeout  = 5 * time.Second
	audioTimeout  = time.Second
)

// effectFeedMe is spoken rather than synthesised, so it is not a
// [horror.Kind].
const effectFeedMe = "feedme"

// RitualInput is the argument of perform_ritual.
type RitualInput struct {
	SourceLang string `json:"source_lang,omitempty" jsonschema:"language of the code, for example COBOL; empty lets the spirits guess"`
	TargetLang string `json:"target_lang" jsonschema:"language to resurrect the code in, for example Go"`
	Code       string `json:"code" jsonschema:"the source code lying on the autopsy table"`
	Mode       string `json:"mode,omitempty" jsonschema:"AUTOPSY, RESURRECT, CURSE_REMOVAL, SOUL_BINDING or FULL_RITUAL; empty means RESURRECT"`
}

// ListGraveyardInput is the argument of list_graveyard.
type ListGraveyardInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of graves to return, newest first; zero returns all"`
}

// ListGraveyardOutput is the result of list_graveyard.
type ListGraveyardOutput struct {
	Graves []graveyard.Grave `json:"graves"`
	Total  int               `json:"total"`
}

// PlayEffectInput is the argument of play_effect.
type PlayEffectInput struct {
	Kind string `json:"kind" jsonschema:"whisper, glitch, typing, heartbeat, scream, growl or feedme"`
}

// PlayEffectOutput is the result of play_effect.
type PlayEffectOutput struct {
	Kind   string `json:"kind"`
	Played bool   `json:"played"`
}

// SpeakInput is the argument of speak.
type SpeakInput struct {
	Text string `json:"text" jsonschema:"what the demon should say"`
}

// SpeakOutput is the result of speak.
type SpeakOutput struct {
	Spoken string `json:"spoken"`
}

func (s *Server) registerTools() {
	addTool(s, &mcpsdk.Tool{
		Name:        ToolPerformRitual,
		Description: "Perform a ritual on dead code: dissect it, resurrect it in another language, remove its curses, bind its soul, or all four in order.",
	}, ritualTimeout, s.performRitual)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolListGraveyard,
		Description: "List past rituals from the graveyard, newest first.",
	}, storeTimeout, s.listGraveyard)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolPlayEffect,
		Description: "Play a horror sound effect in the room.",
	}, audioTimeout, s.playEffect)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolSpeak,
		Description: "Have the demon speak a line aloud, with a growl underneath.",
	}, audioTimeout, s.speak)
}

func (s *Server) performRitual(ctx context.Context, _ *mcpsdk.CallToolRequest, in RitualInput) (*mcpsdk.CallToolResult, altar.Outcome, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, altar.Outcome{}, errors.New("no code to resurrect")
	}
	mode, err := ritual.ParseMode(in.Mode)
	if err != nil {
		return nil, altar.Outcome{}, err
	}
	out, err := s.summoner.Summon(ctx, ritual.Request{
		SourceLang: in.SourceLang,
		TargetLang: in.TargetLang,
		Code:       in.Code,
		Mode:       mode,
	})
	if err != nil {
		return nil, altar.Outcome{}, fmt.Errorf("%s: %w", ritual.FailureText, err)
	}
	return nil, out, nil
}

func (s *Server) listGraveyard(ctx context.Context, _ *mcpsdk.CallToolRequest, in ListGraveyardInput) (*mcpsdk.CallToolResult, ListGraveyardOutput, error) {
	graves, err := s.graves.LoadAll(ctx)
	if err != nil {
		return nil, ListGraveyardOutput{}, fmt.Errorf("the graveyard is unreachable: %w", err)
	}
	out := ListGraveyardOutput{Graves: graves, Total: len(graves)}
	if in.Limit > 0 && in.Limit < len(graves) {
		out.Graves = graves[:in.Limit]
	}
	if out.Graves == nil {
		out.Graves = []graveyard.Grave{}
	}
	return nil, out, nil
}

func (s *Server) playEffect(_ context.Context, _ *mcpsdk.CallToolRequest, in PlayEffectInput) (*mcpsdk.CallToolResult, PlayEffectOutput, error) {
	name := strings.ToLower(strings.TrimSpace(in.Kind))
	if name == effectFeedMe {
		s.audio.PlayFeedMe()
		return nil, PlayEffectOutput{Kind: name, Played: true}, nil
	}
	kind, err := horror.ParseKind(name)
	if err != nil {
		return nil, PlayEffectOutput{}, err
	}
	return nil, PlayEffectOutput{Kind: string(kind), Played: s.audio.Play(kind) != nil}, nil
}

func (s *Server) speak(_ context.Context, _ *mcpsdk.CallToolRequest, in SpeakInput) (*mcpsdk.CallToolResult, SpeakOutput, error) {
	text := horror.Sanitize(in.Text)
	if strings.TrimSpace(text) == "" {
		return nil, SpeakOutput{}, errors.New("nothing to say")
	}
	s.audio.Speak(in.Text)
	return nil, SpeakOutput{Spoken: text}, nil
}
