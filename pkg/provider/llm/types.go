package llm

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	// Role is RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text of the turn.
	Content string
}

// ModelCapabilities describes the limits of a model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input plus output.
	ContextWindow int

	// MaxOutputTokens is the most the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStreaming reports native streaming support.
	SupportsStreaming bool

	// SupportsTopK reports whether CompletionRequest.TopK is honoured.
	SupportsTopK bool
}

// EstimateTokens is the rough four-characters-per-token count used by
// backends without a tokenizer endpoint, plus a small per-message overhead.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}

// Collect drains a chunk stream into a single string. It returns the text
// of an "error" chunk as the second value.
func Collect(ch <-chan Chunk) (text string, errText string) {
	var b []byte
	for c := range ch {
		if c.FinishReason == "error" {
			errText = c.Text
			continue
		}
		b = append(b, c.Text...)
	}
	return string(b), errText
}
