package source

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
)

// claudeParser decodes line-delimited message records: one JSON object per
// line with a nested message envelope holding role, model, content blocks,
// and usage.
type claudeParser struct {
	path string
}

type claudeLine struct {
	Type        string         `json:"type"`
	Timestamp   string         `json:"timestamp"`
	SessionID   string         `json:"sessionId"`
	Cwd         string         `json:"cwd"`
	GitBranch   string         `json:"gitBranch"`
	Slug        string         `json:"slug"`
	IsSidechain bool           `json:"isSidechain"`
	Message     *claudeMessage `json:"message"`
}

type claudeMessage struct {
	ID      string                     `json:"id"`
	Role    string                     `json:"role"`
	Model   string                     `json:"model"`
	Content json.RawMessage            `json:"content"`
	Usage   map[string]json.RawMessage `json:"usage"`
}

type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

func (p *claudeParser) Provider() model.Provider { return model.ProviderClaude }

// Stream reads the file line by line. Lines that fail to decode are
// skipped; truncated JSON at a read boundary is expected, not an error.
func (p *claudeParser) Stream(fn func(model.Record) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), 10*1024*1024) // large tool outputs

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw claudeLine
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		switch raw.Type {
		case "user", "assistant":
		default:
			continue
		}

		rec := model.Record{
			Kind:      model.KindMessage,
			Role:      raw.Type,
			Timestamp: parseTimestamp(raw.Timestamp),
			Cwd:       raw.Cwd,
			GitBranch: raw.GitBranch,
			Slug:      raw.Slug,
			Sidechain: raw.IsSidechain,
		}

		if msg := raw.Message; msg != nil {
			rec.MessageID = msg.ID
			rec.Model = msg.Model
			if msg.Role != "" {
				rec.Role = msg.Role
			}
			rec.Usage = decodeUsage(msg.Usage)
			rec.Text, rec.Blocks = decodeClaudeContent(msg.Content)
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	// Scanner errors (oversized line, truncated tail) end the stream
	// quietly: everything decoded so far already reached the consumer.
	return nil
}

// decodeClaudeContent handles both content shapes: a plain string, or an
// array of typed blocks.
func decodeClaudeContent(raw json.RawMessage) (string, []model.ContentBlock) {
	if len(raw) == 0 {
		return "", nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var rawBlocks []claudeBlock
	if err := json.Unmarshal(raw, &rawBlocks); err != nil {
		return "", nil
	}

	var texts []string
	var blocks []model.ContentBlock
	for _, b := range rawBlocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
			blocks = append(blocks, model.ContentBlock{Type: model.BlockText, Text: b.Text})
		case "thinking":
			blocks = append(blocks, model.ContentBlock{Type: model.BlockThinking, Text: b.Thinking})
		case "tool_use":
			blocks = append(blocks, model.ContentBlock{
				Type:      model.BlockToolUse,
				ToolUseID: b.ID,
				ToolName:  b.Name,
				ToolInput: b.Input,
			})
		case "tool_result":
			blocks = append(blocks, model.ContentBlock{
				Type:          model.BlockToolResult,
				ResultFor:     b.ToolUseID,
				ResultContent: flattenResultContent(b.Content),
				IsError:       b.IsError,
			})
		}
	}
	return strings.Join(texts, "\n"), blocks
}

// flattenResultContent reduces a tool result body (string or block array)
// to plain text.
func flattenResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
