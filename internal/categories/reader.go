// Package categories serves the static list of allowed categories and
// subcategories that clients use for their own validation. The ledger itself
// stores categories as free text and never consults this list.
package categories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// URI is the resource name the list is published under.
const URI = "expense://categories"

var ErrInvalidDocument = errors.New("categories file is not valid JSON")

// Reader reads the categories document from disk on every call. Nothing is
// cached, so edits to the file show up on the next read without a restart.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Read returns the raw JSON document.
func (r *Reader) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: %w", r.path, ErrInvalidDocument)
	}
	return data, nil
}
