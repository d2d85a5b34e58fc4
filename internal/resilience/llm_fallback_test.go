package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/necromancer/pkg/provider/llm"
	llmmock "github.com/MrWong99/necromancer/pkg/provider/llm/mock"
)

func newLLMFallback(primary, secondary *llmmock.Provider) *LLMFallback {
	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)
	return fb
}

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from the primary"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from the secondary"}}
	fb := newLLMFallback(primary, secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from the primary" {
		t.Errorf("content = %q, want from the primary", resp.Content)
	}
	if len(secondary.Calls()) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from the secondary"}}
	fb := newLLMFallback(primary, secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from the secondary" {
		t.Errorf("content = %q, want from the secondary", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	t.Parallel()
	fb := newLLMFallback(
		&llmmock.Provider{CompleteErr: errors.New("down")},
		&llmmock.Provider{CompleteErr: errors.New("also down")},
	)
	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_StreamCompletion_Failover(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{StreamErr: errors.New("no stream")}
	secondary := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "hel"}, {Text: "lo", FinishReason: "stop"}}}
	fb := newLLMFallback(primary, secondary)

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var text string
	for c := range ch {
		text += c.Text
	}
	if text != "hello" {
		t.Errorf("streamed %q, want hello", text)
	}
}

func TestLLMFallback_PrimaryMetadata(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{
		TokenCount:        7,
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 1000},
	}
	secondary := &llmmock.Provider{
		TokenCount:        99,
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 5},
	}
	fb := newLLMFallback(primary, secondary)

	if n, err := fb.CountTokens(nil); err != nil || n != 7 {
		t.Errorf("CountTokens = (%d, %v), want (7, nil)", n, err)
	}
	if got := fb.Capabilities().ContextWindow; got != 1000 {
		t.Errorf("ContextWindow = %d, want 1000", got)
	}
	if fb.Group().Primary() != primary {
		t.Error("Group().Primary() is not the primary")
	}
}
