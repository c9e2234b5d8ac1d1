// Package document turns uploaded files into chapters.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Common parse errors.
var (
	// ErrUnsupportedFormat is returned for file types without a parser.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrNoChapters is returned when a document yields no readable text.
	ErrNoChapters = errors.New("no readable text found")
)

// Chapter is a titled span of document text. Chapters are immutable once
// created.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ParseError reports a document that could not be turned into chapters.
type ParseError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Name, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser converts raw document bytes into chapters.
type Parser interface {
	Parse(data []byte, name string) ([]Chapter, error)
}

var parsers = map[string]Parser{}

// Register associates p with file extensions such as ".pdf".
func Register(p Parser, exts ...string) {
	for _, ext := range exts {
		parsers[strings.ToLower(ext)] = p
	}
}

func init() {
	Register(&PDFParser{}, ".pdf")
	Register(&EPUBParser{}, ".epub")
	Register(&TextParser{}, ".txt", ".text")
	Register(&MarkdownParser{}, ".md", ".markdown")
	Register(&DOCXParser{}, ".docx")
}

// ForFile returns the parser for name's extension.
func ForFile(name string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	p, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return p, nil
}

// SupportedExtensions lists registered extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(parsers))
	for ext := range parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether name has a registered parser.
func IsSupported(name string) bool {
	_, err := ForFile(name)
	return err == nil
}

// Parse picks a parser by name and extracts chapters. Every failure is
// returned as a *ParseError.
func Parse(data []byte, name string) ([]Chapter, error) {
	p, err := ForFile(name)
	if err != nil {
		return nil, &ParseError{
			Name:   name,
			Reason: "Unsupported file type. Please upload a PDF or EPUB.",
			Err:    err,
		}
	}

	chapters, err := p.Parse(data, name)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &ParseError{Name: name, Reason: "could not read document", Err: err}
	}
	if len(chapters) == 0 {
		return nil, &ParseError{Name: name, Reason: "document is empty", Err: ErrNoChapters}
	}
	return chapters, nil
}
