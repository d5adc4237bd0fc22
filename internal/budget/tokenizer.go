// Package budget counts tokens so chat history can be fitted to a
// context window.
package budget

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter reports the approximate token cost of a string and can cut a
// string down to a token count.
type Counter interface {
	Count(s string) int
	Truncate(s string, maxTokens int) string
}

// Tokenizer wraps tiktoken for approximate token counting.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer using the cl100k_base encoding, a good
// approximation for every provider personachat talks to.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("budget: get encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the approximate number of tokens in s.
func (t *Tokenizer) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// Truncate cuts s to at most maxTokens tokens.
func (t *Tokenizer) Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// Approx estimates four characters per token. It needs no encoding data.
type Approx struct{}

func (Approx) Count(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// Truncate keeps the first 4*maxTokens runes of s.
func (Approx) Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * 4
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Default returns a tiktoken counter, or Approx when the encoding cannot
// be loaded (tiktoken fetches it on first use).
func Default(log *slog.Logger) Counter {
	tok, err := NewTokenizer()
	if err != nil {
		if log != nil {
			log.Warn("token encoding unavailable, using character estimate", "error", err)
		}
		return Approx{}
	}
	return tok
}
