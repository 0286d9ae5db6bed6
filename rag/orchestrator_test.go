package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ragchat/llm"
	"ragchat/memory"
)

// fakeClient records the messages it was sent and returns a fixed answer or
// error.
type fakeClient struct {
	answer   string
	err      error
	messages []llm.ChatMessage
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestOrchestrator(client llm.CompletionClient, chunks []Chunk) *Orchestrator {
	handle := NewHandle(NewStaticRetriever(chunks))
	return NewOrchestrator(handle, client, "You are a helpful assistant.", 4)
}

func testEntry() *memory.Entry {
	return memory.NewCache(10).GetOrCreate("s1", nil)
}

func TestAnswerEmptyQuery(t *testing.T) {
	client := &fakeClient{answer: "should not be called"}
	o := newTestOrchestrator(client, nil)
	entry := testEntry()

	result := o.Answer(context.Background(), "   \n\t", entry, true)
	if result.Success {
		t.Fatalf("expected failure for empty query")
	}
	if result.Response != "Please provide a valid question." {
		t.Fatalf("unexpected response: %q", result.Response)
	}
	if client.messages != nil {
		t.Fatalf("completion backend should not be called for empty query")
	}
	if entry.Len() != 0 {
		t.Fatalf("empty query must not touch the window")
	}
}

func TestAnswerSuccess(t *testing.T) {
	chunks := []Chunk{
		{Text: "Vacation days accrue monthly.", Source: "vacation.md"},
		{Text: "Vacation carries over one year.", Source: "vacation.md"},
		{Text: "Expenses need receipts.", Source: "expenses.md"},
	}
	client := &fakeClient{answer: "You accrue vacation monthly."}
	o := newTestOrchestrator(client, chunks)
	entry := testEntry()

	result := o.Answer(context.Background(), "how does vacation accrue", entry, true)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Response != client.answer {
		t.Fatalf("unexpected response: %q", result.Response)
	}
	// Sources are deduplicated and sorted.
	if len(result.Sources) != 1 || result.Sources[0] != "vacation.md" {
		t.Fatalf("unexpected sources: %v", result.Sources)
	}

	if entry.Len() != 1 {
		t.Fatalf("expected 1 turn appended, got %d", entry.Len())
	}
	window := entry.Window()
	if window[0].Query != "how does vacation accrue" || window[0].Answer != client.answer {
		t.Fatalf("unexpected turn: %+v", window[0])
	}

	// System message carries the retrieved excerpts.
	if len(client.messages) == 0 || client.messages[0].Role != "system" {
		t.Fatalf("expected system message first: %+v", client.messages)
	}
	if !strings.Contains(client.messages[0].Content, "[vacation.md]") {
		t.Fatalf("expected excerpts in system message: %q", client.messages[0].Content)
	}
	if client.messages[len(client.messages)-1].Content != "how does vacation accrue" {
		t.Fatalf("expected query last: %+v", client.messages)
	}
}

func TestAnswerIncludesWindow(t *testing.T) {
	client := &fakeClient{answer: "ok"}
	o := newTestOrchestrator(client, nil)
	entry := testEntry()
	entry.Append("earlier question", "earlier answer")

	o.Answer(context.Background(), "follow-up", entry, true)

	var sawEarlier bool
	for _, m := range client.messages {
		if m.Content == "earlier question" {
			sawEarlier = true
		}
	}
	if !sawEarlier {
		t.Fatalf("expected the memory window in the prompt: %+v", client.messages)
	}
}

func TestAnswerExcludesWindowWhenDisabled(t *testing.T) {
	client := &fakeClient{answer: "ok"}
	o := newTestOrchestrator(client, nil)
	entry := testEntry()
	entry.Append("earlier question", "earlier answer")

	o.Answer(context.Background(), "standalone", entry, false)

	for _, m := range client.messages {
		if m.Content == "earlier question" {
			t.Fatalf("window must be excluded when history is disabled")
		}
	}
	// The turn is still recorded.
	if entry.Len() != 2 {
		t.Fatalf("expected turn appended, got %d", entry.Len())
	}
}

func TestAnswerBackendFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("backend down")}
	o := newTestOrchestrator(client, nil)
	entry := testEntry()

	result := o.Answer(context.Background(), "anything", entry, true)
	if result.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(result.Response, "I apologize") {
		t.Fatalf("expected apology, got %q", result.Response)
	}
	if result.Err == "" {
		t.Fatalf("expected error detail")
	}
	if entry.Len() != 0 {
		t.Fatalf("failed turn must leave the window unchanged")
	}
}

func TestStaticRetrieverScoring(t *testing.T) {
	r := NewStaticRetriever([]Chunk{
		{Text: "Remote work policy and equipment", Source: "remote.md"},
		{Text: "Remote work requires manager approval for equipment purchases", Source: "remote.md"},
		{Text: "Parking passes are issued monthly", Source: "parking.md"},
	})

	chunks, err := r.Retrieve(context.Background(), "remote equipment approval", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "Remote work requires manager approval for equipment purchases" {
		t.Fatalf("expected highest-overlap chunk first, got %q", chunks[0].Text)
	}

	// No shared terms: nothing comes back.
	chunks, err = r.Retrieve(context.Background(), "zzz qqq", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestHandleSwap(t *testing.T) {
	first := NewStaticRetriever([]Chunk{{Text: "old", Source: "old.md"}})
	second := NewStaticRetriever([]Chunk{{Text: "new", Source: "new.md"}})

	h := NewHandle(first)
	if h.Load() != Retriever(first) {
		t.Fatalf("expected initial retriever")
	}

	h.Swap(second)
	if h.Load() != Retriever(second) {
		t.Fatalf("expected swapped retriever")
	}
}
