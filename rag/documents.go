package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDocuments reads every .txt and .md file in dir and splits each into
// paragraph chunks on blank lines. The chunk source is the file name. A
// missing directory is not an error; it yields no chunks.
func LoadDocuments(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read documents dir: %w", err)
	}

	var chunks []Chunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", entry.Name(), err)
		}

		for _, para := range splitParagraphs(string(data)) {
			chunks = append(chunks, Chunk{Text: para, Source: entry.Name()})
		}
	}
	return chunks, nil
}

// splitParagraphs splits text on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, block := range strings.Split(normalized, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paras = append(paras, block)
		}
	}
	return paras
}
