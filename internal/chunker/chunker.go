// Package chunker splits chapter text into utterance-sized pieces.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnknownPolicy is returned by New for an unrecognised policy name.
var ErrUnknownPolicy = errors.New("unknown chunking policy")

// Policy names a chunking strategy.
type Policy string

const (
	// PolicySentence splits on runs ending in terminators, falling back to
	// whitespace tokens.
	PolicySentence Policy = "sentence"
	// PolicySmart understands abbreviations, decimals and ellipses.
	PolicySmart Policy = "smart"
)

// Chunker turns text into an ordered list of non-empty chunks.
type Chunker interface {
	Chunk(text string) []string
}

// sentencePattern matches one or more non-terminators followed by
// terminators, or else a bare whitespace-delimited token.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|\S+`)

// Option configures a chunker.
type Option func(*options)

type options struct {
	maxRunes int
}

// WithMaxRunes caps chunk length. Longer chunks are split at the last
// whitespace before the limit. Zero disables the cap.
func WithMaxRunes(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRunes = n
	}
}

// New returns the chunker for policy. An empty policy selects PolicySentence.
func New(policy Policy, opts ...Option) (Chunker, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch policy {
	case "", PolicySentence:
		return &RegexChunker{maxRunes: o.maxRunes}, nil
	case PolicySmart:
		s := NewSmartChunker()
		s.maxRunes = o.maxRunes
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// RegexChunker is the default policy.
type RegexChunker struct {
	maxRunes int
}

// Chunk implements Chunker.
func (c *RegexChunker) Chunk(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	chunks := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		chunks = append(chunks, limit(m, c.maxRunes)...)
	}
	return chunks
}

// limit splits s into pieces of at most max runes.
func limit(s string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	var out []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		for i := max; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		out = append(out, rest)
	}
	return out
}
