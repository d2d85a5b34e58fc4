// Package llm defines the Provider interface for text-generation backends.
//
// A provider wraps a remote or local model API (Gemini, OpenAI, or anything
// any-llm-go speaks to) behind one interface so the ritual and séance
// services can complete prompts, count tokens, and inspect model limits
// without coupling to an SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a
// response. At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is normally
	// from the user and drives the response.
	Messages []Message

	// SystemPrompt is an optional instruction placed ahead of the history.
	// Backends without a dedicated system field prepend it as a system
	// message.
	SystemPrompt string

	// Temperature controls randomness in [0, 2]. Zero leaves the backend
	// default in place.
	Temperature float64

	// TopP is the nucleus-sampling mass in (0, 1]. Zero means unset.
	TopP float64

	// TopK limits sampling to the K most likely tokens. Zero means unset.
	// Backends that do not support it ignore the field; check
	// Capabilities().SupportsTopK.
	TopK int

	// MaxTokens caps the completion length. Zero means the backend default.
	MaxTokens int
}

// Chunk is one fragment of a streaming completion.
type Chunk struct {
	// Text is the incremental text of this chunk. It may be empty on the
	// final chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", or "error".
	// When it is "error", Text holds the error message.
	FinishReason string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any text-generation backend.
//
// Each method should propagate context cancellation promptly.
type Provider interface {
	// StreamCompletion sends req and returns a channel of chunks, closed when
	// generation finishes or ctx is cancelled. Errors after the stream has
	// started arrive as a Chunk with FinishReason "error". The channel is
	// never nil when the error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many context tokens messages would consume.
	// It may approximate but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}
