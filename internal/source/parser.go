// Package source discovers provider session files and decodes their raw
// transcript encodings into canonical record streams.
package source

import (
	"errors"

	"github.com/OptimiLabs/velocity/internal/model"
)

// ErrMalformedSession marks a single-document session file that could not
// be parsed as JSON at all. Callers treat it as a file-level failure: the
// session stays unaggregated, the run continues.
var ErrMalformedSession = errors.New("malformed session file")

// Parser decodes one transcript into a canonical record stream. The stream
// is restartable (every Stream call reopens the file) but a single Parser
// must not be shared across concurrent consumers.
//
// Malformed individual lines or records are skipped; a record missing
// expected fields yields zeroed fields rather than aborting the stream.
type Parser interface {
	Provider() model.Provider
	Stream(fn func(model.Record) error) error
}

// NewParser returns the parser for a provider's transcript file.
func NewParser(provider model.Provider, path string) Parser {
	switch provider {
	case model.ProviderCodex:
		return &codexParser{path: path}
	case model.ProviderGemini:
		return &geminiParser{path: path}
	default:
		return &claudeParser{path: path}
	}
}
