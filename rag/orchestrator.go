package rag

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"ragchat/llm"
	"ragchat/memory"
)

// apologyMessage is the user-safe text returned when the retrieval or
// completion backend fails. The raw detail goes into Result.Err for logs.
const apologyMessage = "I apologize, but I encountered an error processing your request. Please try again."

// Result is the structured outcome of one orchestration turn. Backend
// failures are reported here rather than raised, so callers always receive
// a well-formed result.
type Result struct {
	Response string
	Sources  []string
	Success  bool
	Err      string
}

// Orchestrator composes a grounded answer from the session's memory window
// and the chunks retrieved for the query.
type Orchestrator struct {
	retriever    *Handle
	client       llm.CompletionClient
	systemPrompt string
	topK         int
}

// NewOrchestrator creates an orchestrator. topK is the number of chunks
// retrieved per query.
func NewOrchestrator(retriever *Handle, client llm.CompletionClient, systemPrompt string, topK int) *Orchestrator {
	return &Orchestrator{
		retriever:    retriever,
		client:       client,
		systemPrompt: systemPrompt,
		topK:         topK,
	}
}

// Answer runs one turn: retrieve, complete, extract sources, and append the
// turn to the memory entry. The caller must hold entry's lock for the whole
// turn so concurrent turns on the same session serialize. When
// includeHistory is false the memory window is left out of the prompt; the
// turn is still appended on success.
//
// An empty or whitespace-only query is rejected before the retriever or the
// completion backend is touched. The memory window is appended only on
// success; a failed turn leaves it unchanged.
func (o *Orchestrator) Answer(ctx context.Context, query string, entry *memory.Entry, includeHistory bool) Result {
	if strings.TrimSpace(query) == "" {
		return Result{
			Response: "Please provide a valid question.",
			Sources:  []string{},
			Success:  false,
		}
	}

	retriever := o.retriever.Load()
	chunks, err := retriever.Retrieve(ctx, query, o.topK)
	if err != nil {
		log.Printf("ERROR: retrieval failed: %v", err)
		return Result{Response: apologyMessage, Sources: []string{}, Success: false, Err: err.Error()}
	}

	var window []memory.Turn
	if includeHistory {
		window = entry.Window()
	}
	messages := o.composeMessages(query, window, chunks)
	answer, err := o.client.Complete(ctx, messages)
	if err != nil {
		log.Printf("ERROR: completion failed: %v", err)
		return Result{Response: apologyMessage, Sources: []string{}, Success: false, Err: err.Error()}
	}

	entry.Append(query, answer)

	return Result{
		Response: answer,
		Sources:  extractSources(chunks),
		Success:  true,
	}
}

// composeMessages builds the completion request: system framing with the
// retrieved context, then the memory window, then the query.
func (o *Orchestrator) composeMessages(query string, window []memory.Turn, chunks []Chunk) []llm.ChatMessage {
	var system strings.Builder
	system.WriteString(o.systemPrompt)
	if len(chunks) > 0 {
		system.WriteString("\n\nReference excerpts:\n")
		for _, chunk := range chunks {
			fmt.Fprintf(&system, "\n[%s]\n%s\n", chunk.Source, chunk.Text)
		}
	}

	messages := []llm.ChatMessage{{Role: "system", Content: system.String()}}
	for _, turn := range window {
		messages = append(messages,
			llm.ChatMessage{Role: "user", Content: turn.Query},
			llm.ChatMessage{Role: "assistant", Content: turn.Answer},
		)
	}
	return append(messages, llm.ChatMessage{Role: "user", Content: query})
}

// extractSources deduplicates the source ids of the retrieved chunks. The
// set is order-insensitive; it is sorted here so output is stable.
func extractSources(chunks []Chunk) []string {
	seen := make(map[string]struct{})
	sources := []string{}
	for _, chunk := range chunks {
		if chunk.Source == "" {
			continue
		}
		if _, ok := seen[chunk.Source]; ok {
			continue
		}
		seen[chunk.Source] = struct{}{}
		sources = append(sources, chunk.Source)
	}
	sort.Strings(sources)
	return sources
}
