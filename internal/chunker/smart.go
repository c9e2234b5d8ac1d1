package chunker

import (
	"strings"
	"unicode"
)

// SmartChunker splits on sentence boundaries but does not break on
// abbreviations, decimal numbers or ellipses. Trailing text without a
// terminator is tokenized on whitespace like the default policy.
type SmartChunker struct {
	abbreviations map[string]bool
	titleAbbrevs  map[string]bool
	maxRunes      int
}

// NewSmartChunker returns a SmartChunker with English abbreviations.
func NewSmartChunker() *SmartChunker {
	return &SmartChunker{
		abbreviations: defaultAbbreviations(),
		titleAbbrevs:  defaultTitleAbbreviations(),
	}
}

// Chunk implements Chunker.
func (c *SmartChunker) Chunk(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return []string{}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if c.isBoundary(runes, i) {
			if s := strings.TrimSpace(current.String()); s != "" {
				chunks = append(chunks, limit(s, c.maxRunes)...)
			}
			current.Reset()
		}
	}

	// Unterminated tail.
	for _, tok := range strings.Fields(current.String()) {
		chunks = append(chunks, limit(tok, c.maxRunes)...)
	}
	return chunks
}

func (c *SmartChunker) isBoundary(runes []rune, pos int) bool {
	switch r := runes[pos]; {
	case isCloser(r):
		// A closing quote or bracket ends a sentence only after a terminator.
		j := pos
		for j > 0 && isCloser(runes[j]) {
			j--
		}
		if !isTerminator(runes[j]) {
			return false
		}
	case !isTerminator(r):
		return false
	}

	// Absorb runs like "?!" and trailing closers into the current chunk.
	if pos+1 < len(runes) && (isTerminator(runes[pos+1]) || isCloser(runes[pos+1])) {
		return false
	}
	if pos+1 >= len(runes) {
		return true
	}
	// "3.14", "e.g" and "example.com" have no space after the dot.
	if !unicode.IsSpace(runes[pos+1]) {
		return false
	}

	end := pos
	for end > 0 && isCloser(runes[end]) {
		end--
	}
	if runes[end] != '.' {
		return true
	}
	if isEllipsis(runes, end) {
		return false
	}

	word := wordBefore(runes, end)
	if c.titleAbbrevs[word] {
		return false
	}
	if c.abbreviations[word] {
		// An abbreviation only ends a sentence when a capital follows.
		next := pos + 1
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		return next < len(runes) && unicode.IsUpper(runes[next])
	}
	return true
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

func wordBefore(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	start++
	if start >= pos {
		return ""
	}
	return strings.ToLower(strings.TrimLeft(string(runes[start:pos]), "(\"'"))
}

func isEllipsis(runes []rune, pos int) bool {
	return pos > 0 && runes[pos-1] == '.'
}

func defaultAbbreviations() map[string]bool {
	return map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"sr": true, "jr": true, "st": true, "ph.d": true, "m.d": true,

		"etc": true, "vs": true, "e.g": true, "i.e": true, "cf": true,
		"inc": true, "ltd": true, "co": true, "corp": true, "no": true,
		"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
		"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
		"nov": true, "dec": true,

		"ft": true, "mi": true, "cm": true, "km": true,
		"oz": true, "lb": true, "kg": true,
		"sec": true, "min": true, "hr": true,
		"vol": true, "ch": true, "pp": true, "fig": true,
	}
}

// defaultTitleAbbreviations are never sentence ends: a name always follows.
func defaultTitleAbbreviations() map[string]bool {
	return map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"st": true,
	}
}
