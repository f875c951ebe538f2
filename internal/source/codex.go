package source

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/OptimiLabs/velocity/internal/model"
)

// codexParser decodes line-delimited event records: one JSON object per
// line with an envelope of {timestamp, type, payload}.
type codexParser struct {
	path string
}

type codexLine struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexMeta struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
	Git *struct {
		Branch string `json:"branch"`
	} `json:"git"`
	Model       string `json:"model"`
	ModelEffort string `json:"model_reasoning_effort"`
}

type codexEventMsg struct {
	Type    string                     `json:"type"`
	Message string                     `json:"message"`
	Text    string                     `json:"text"`
	Model   string                     `json:"model"`
	Usage   map[string]json.RawMessage `json:"usage"`
	Info    *codexTokenInfo            `json:"info"`
}

type codexTokenInfo struct {
	TotalTokenUsage    map[string]json.RawMessage `json:"total_token_usage"`
	LastTokenUsage     map[string]json.RawMessage `json:"last_token_usage"`
	ModelContextWindow int64                      `json:"model_context_window"`
}

func (p *codexParser) Provider() model.Provider { return model.ProviderCodex }

// Stream walks the event log in order. Session metadata events seed the
// model/cwd/effort carried on subsequent records. Token-count events carry
// both a running total and a last-turn delta; the delta is what downstream
// consumers get (computed from consecutive totals when absent).
func (p *codexParser) Stream(fn func(model.Record) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	var (
		curModel   string
		curEffort  string
		cwd        string
		branch     string
		prevTotals model.TokenUsage
	)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		var env codexLine
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		ts := parseTimestamp(env.Timestamp)

		switch env.Type {
		case "session_meta":
			var meta codexMeta
			if err := json.Unmarshal(env.Payload, &meta); err != nil {
				continue
			}
			cwd = meta.Cwd
			if meta.Git != nil {
				branch = meta.Git.Branch
			}
			if meta.Model != "" {
				curModel = meta.Model
			}
			curEffort = meta.ModelEffort

		case "event_msg":
			var ev codexEventMsg
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				continue
			}

			rec := model.Record{
				Kind:      model.KindEvent,
				Timestamp: ts,
				Model:     curModel,
				Cwd:       cwd,
				GitBranch: branch,
				Effort:    curEffort,
			}
			if ev.Model != "" {
				rec.Model = ev.Model
				curModel = ev.Model
			}

			switch ev.Type {
			case "user_message":
				rec.Role = "user"
				rec.Text = firstNonEmpty(ev.Message, ev.Text)
				rec.Usage = codexPayloadUsage(env.Payload, ev.Usage)
			case "agent_message":
				rec.Role = "assistant"
				rec.Text = firstNonEmpty(ev.Message, ev.Text)
				rec.Usage = codexPayloadUsage(env.Payload, ev.Usage)
			case "agent_reasoning":
				rec.Role = "assistant"
				rec.Blocks = []model.ContentBlock{{Type: model.BlockThinking, Text: firstNonEmpty(ev.Text, ev.Message)}}
			case "token_count":
				if ev.Info == nil {
					continue
				}
				delta, totals := codexTurnDelta(ev.Info, prevTotals)
				if totals != nil {
					prevTotals = *totals
				}
				if delta == nil {
					continue
				}
				rec.Usage = delta
				if ev.Info.ModelContextWindow > 0 {
					rec.ContextWindow = ev.Info.ModelContextWindow
				}
			default:
				continue
			}

			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// codexPayloadUsage extracts usage from a message event: an explicit usage
// object wins, else token fields carried directly on the payload.
func codexPayloadUsage(payload json.RawMessage, usage map[string]json.RawMessage) *model.TokenUsage {
	if u := decodeUsage(usage); u != nil {
		return u
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil
	}
	return decodeUsage(flat)
}

// codexTurnDelta returns the per-turn usage for a token_count event. The
// explicit last-turn figure is preferred; otherwise the delta of running
// totals against the previous event is used.
func codexTurnDelta(info *codexTokenInfo, prev model.TokenUsage) (*model.TokenUsage, *model.TokenUsage) {
	totals := decodeUsage(info.TotalTokenUsage)

	if last := decodeUsage(info.LastTokenUsage); last != nil {
		return last, totals
	}
	if totals == nil {
		return nil, nil
	}

	delta := model.TokenUsage{
		Input:      totals.Input - prev.Input,
		Output:     totals.Output - prev.Output,
		CacheRead:  totals.CacheRead - prev.CacheRead,
		CacheWrite: totals.CacheWrite - prev.CacheWrite,
	}
	if delta.Input < 0 || delta.Output < 0 || delta.CacheRead < 0 || delta.CacheWrite < 0 {
		// Totals went backwards (rollout restart); report the raw totals.
		delta = *totals
	}
	if delta.IsZero() {
		return nil, totals
	}
	return &delta, totals
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
