package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Export writes the user's document as indented JSON.
func (s *Store) Export(ctx context.Context, userID string, w io.Writer) error {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("memory: export: %w", err)
	}
	return nil
}

// Import merges a JSON document read from r. Facts go through AddAll so
// deduplication and the cap still hold; preferences are merged.
func (s *Store) Import(ctx context.Context, userID string, r io.Reader) (int, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("memory: import: decode: %w", err)
	}
	n, err := s.AddAll(ctx, userID, doc.FactList())
	if err != nil {
		return 0, err
	}
	if len(doc.PersonalityPreferences) > 0 {
		if err := s.SetPreferences(ctx, userID, doc.PersonalityPreferences); err != nil {
			return n, err
		}
	}
	return n, nil
}
