// Package source reads content items for curation. The engine itself never
// fetches or renders content; it consumes whatever a collection adapter has
// already extracted to text.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"curator/internal/models"
)

// maxLineBytes bounds a single JSONL record. Items past this were extracted
// wrong upstream and would only stall the pipeline.
const maxLineBytes = 16 * 1024 * 1024

// ReadJSONL decodes one content item per line. Blank lines are skipped; a
// malformed line aborts the read with its line number.
func ReadJSONL(ctx context.Context, r io.Reader) ([]models.ContentItem, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var items []models.ContentItem
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var item models.ContentItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("line %d: malformed content item: %w", line, err)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("line %d: content item has no id", line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading content items: %w", err)
	}
	return items, nil
}

// ReadJSONLFile loads a JSONL file of content items.
func ReadJSONLFile(ctx context.Context, path string) ([]models.ContentItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open content source %q: %w", path, err)
	}
	defer f.Close()

	items, err := ReadJSONL(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("content source %q: %w", path, err)
	}
	return items, nil
}
