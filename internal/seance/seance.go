// Package seance lets users question the spirit of a piece of code. A
// [Medium] keeps a chat with an LLM persona whose system prompt embeds the
// code under discussion.
package seance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/pkg/provider/llm"
)

// ErrSpiritsSilent wraps every failure to get an answer from the provider.
var ErrSpiritsSilent = errors.New("seance: the spirits are silent")

// SilentReply is shown in place of an answer when the provider fails.
const SilentReply = "The spirits are silent... (Error)"

// NoCode is the code context used when none is given.
const NoCode = "No code provided."

// emptyReply stands in for a blank answer.
const emptyReply = "..."

// Roles of a séance message.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one line of the séance transcript.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SystemPrompt returns the Spirit Medium persona with code embedded.
func SystemPrompt(code string) string {
	if strings.TrimSpace(code) == "" {
		code = NoCode
	}
	return `You are a Spirit Medium who can speak with "Dead Code": legacy, broken or ancient code.
The user has summoned you to answer questions about the code snippet lying on the autopsy table.

THE CORPSE (CODE CONTEXT):
` + "```" + `
` + code + `
` + "```" + `

Your personality:
1. Mysterious and a little occult, but helpful.
2. Speak in metaphors of spirits, limbo, decay and resurrection.
3. Be concise. The veil between worlds is thin.
4. Call buggy code "cursed" or "infected".
5. Call good code "strong spirited".

Answer questions about what this code does, how to fix it, or how to translate it.`
}

// Medium holds one séance. It is safe for concurrent use; turns are
// recorded in the order their answers arrive.
type Medium struct {
	provider llm.Provider
	reserve  int

	mu      sync.Mutex
	system  string
	history []llm.Message
	gen     int
}

// Option is a functional option for [New].
type Option func(*Medium)

// WithReserve sets how many tokens of the context window are kept free for
// the answer. The default is 1024.
func WithReserve(tokens int) Option {
	return func(m *Medium) {
		if tokens >= 0 {
			m.reserve = tokens
		}
	}
}

// New starts a séance over code.
func New(provider llm.Provider, code string, opts ...Option) *Medium {
	m := &Medium{
		provider: provider,
		reserve:  1024,
		system:   SystemPrompt(code),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reset starts a new séance over code, forgetting the transcript. Answers
// still in flight for the old séance are discarded.
func (m *Medium) Reset(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = SystemPrompt(code)
	m.history = nil
	m.gen++
}

// History returns the transcript so far.
func (m *Medium) History() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.history))
	for _, h := range m.history {
		role := RoleUser
		if h.Role == llm.RoleAssistant {
			role = RoleModel
		}
		out = append(out, Message{Role: role, Text: h.Content})
	}
	return out
}

// Ask sends message and waits for the spirit's answer.
func (m *Medium) Ask(ctx context.Context, message string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "seance.ask")
	defer span.End()

	req, gen, err := m.prepare(message)
	if err != nil {
		return "", err
	}
	resp, err := m.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrSpiritsSilent, err)
	}
	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Content)
	}
	if reply == "" {
		reply = emptyReply
	}
	m.record(gen, message, reply)
	return reply, nil
}

// Stream sends message and returns the answer as it arrives. The channel is
// closed when the answer is complete. If the provider fails mid-answer,
// [SilentReply] is sent as the last fragment and the turn is not recorded.
func (m *Medium) Stream(ctx context.Context, message string) (<-chan string, error) {
	req, gen, err := m.prepare(message)
	if err != nil {
		return nil, err
	}
	chunks, err := m.provider.StreamCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpiritsSilent, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		var b strings.Builder
		for c := range chunks {
			if c.FinishReason == "error" {
				observe.Logger(ctx).Warn("seance stream failed", "err", c.Text)
				select {
				case out <- SilentReply:
				case <-ctx.Done():
				}
				return
			}
			if c.Text == "" {
				continue
			}
			b.WriteString(c.Text)
			select {
			case out <- c.Text:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		reply := strings.TrimSpace(b.String())
		if reply == "" {
			reply = emptyReply
		}
		m.record(gen, message, reply)
	}()
	return out, nil
}

// prepare builds the request for message, trimming the oldest turns until
// the prompt fits the model's context window.
func (m *Medium) prepare(message string) (llm.CompletionRequest, int, error) {
	if strings.TrimSpace(message) == "" {
		return llm.CompletionRequest{}, 0, fmt.Errorf("%w: empty message", ErrSpiritsSilent)
	}

	m.mu.Lock()
	system := m.system
	history := append([]llm.Message(nil), m.history...)
	gen := m.gen
	m.mu.Unlock()

	msgs := append(history, llm.Message{Role: llm.RoleUser, Content: message})
	if window := m.provider.Capabilities().ContextWindow; window > 0 {
		budget := window - m.reserve
		for len(msgs) > 1 {
			n, err := m.provider.CountTokens(append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, msgs...))
			if err != nil {
				return llm.CompletionRequest{}, 0, fmt.Errorf("%w: count tokens: %w", ErrSpiritsSilent, err)
			}
			if n <= budget {
				break
			}
			// Drop a whole question and answer pair where possible.
			drop := 1
			if len(msgs) > 2 {
				drop = 2
			}
			msgs = msgs[drop:]
		}
	}
	return llm.CompletionRequest{SystemPrompt: system, Messages: msgs}, gen, nil
}

func (m *Medium) record(gen int, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.history = append(m.history,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
}
