package source

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/OptimiLabs/velocity/internal/model"
)

// maxGeminiDocBytes caps how large a single-document session file may be.
// The whole document must be decoded at once, so the ceiling guards memory.
const maxGeminiDocBytes = 50 * 1024 * 1024

// geminiParser decodes a single JSON document holding the entire session:
// {sessionId, startTime, messages: [...]}.
type geminiParser struct {
	path string
}

type geminiDoc struct {
	SessionID string          `json:"sessionId"`
	StartTime string          `json:"startTime"`
	Messages  []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	ID        string                     `json:"id"`
	Timestamp string                     `json:"timestamp"`
	Type      string                     `json:"type"`
	Role      string                     `json:"role"`
	Content   string                     `json:"content"`
	Thoughts  json.RawMessage            `json:"thoughts"`
	Model     string                     `json:"model"`
	Tokens    map[string]json.RawMessage `json:"tokens"`
}

func (p *geminiParser) Provider() model.Provider { return model.ProviderGemini }

// Stream reads and decodes the whole document, then replays its message
// array in order. A document that fails to parse as JSON at all is a
// file-level failure reported as ErrMalformedSession.
func (p *geminiParser) Stream(fn func(model.Record) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxGeminiDocBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxGeminiDocBytes {
		return fmt.Errorf("%w: document exceeds %d bytes", ErrMalformedSession, maxGeminiDocBytes)
	}

	var doc geminiDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}

	for _, msg := range doc.Messages {
		role := msg.Role
		if role == "" {
			switch msg.Type {
			case "user":
				role = "user"
			case "gemini", "assistant":
				role = "assistant"
			default:
				continue
			}
		}

		rec := model.Record{
			Kind:      model.KindMessage,
			Role:      role,
			MessageID: msg.ID,
			Model:     msg.Model,
			Timestamp: parseTimestamp(msg.Timestamp),
			Text:      msg.Content,
			Usage:     decodeUsage(msg.Tokens),
		}
		if th := flattenThoughts(msg.Thoughts); th != "" {
			rec.Blocks = append(rec.Blocks, model.ContentBlock{Type: model.BlockThinking, Text: th})
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// flattenThoughts reduces the thoughts field (string or array of
// {subject, description} objects) to plain text.
func flattenThoughts(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var items []struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return ""
	}
	out := ""
	for _, it := range items {
		if it.Subject != "" {
			out += it.Subject + ": "
		}
		out += it.Description + "\n"
	}
	return out
}
