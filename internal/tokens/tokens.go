// Package tokens provides deterministic token counting for persisted
// messages.
package tokens

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a piece of text. Implementations must be
// deterministic: the same text always yields the same count.
type Counter interface {
	Count(text string) int
}

// Encoding is the BPE encoding used for token accounting.
const Encoding = "cl100k_base"

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Approximate estimates tokens as one per four characters, rounded up, with
// a floor of one token per word. Used when the BPE encoding cannot be
// loaded so persistence never blocks on tokenizer setup.
type Approximate struct{}

func (Approximate) Count(text string) int {
	if text == "" {
		return 0
	}
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// NewCounter returns a BPE-backed counter, falling back to Approximate when
// the encoding is unavailable.
func NewCounter() Counter {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return Approximate{}
	}
	return &tiktokenCounter{enc: enc}
}
