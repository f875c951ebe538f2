package model

import "time"

// Provider identifies which CLI produced a transcript.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderCodex  Provider = "codex"
	ProviderGemini Provider = "gemini"
)

// RecordKind distinguishes message records from event records.
type RecordKind string

const (
	KindMessage RecordKind = "message"
	KindEvent   RecordKind = "event"
)

// BlockType enumerates the content block types carried by a record.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// TokenUsage holds the four canonical token counters for one record.
type TokenUsage struct {
	Input      int64
	Output     int64
	CacheRead  int64
	CacheWrite int64
}

// Billable returns the total token count subject to pricing.
func (u TokenUsage) Billable() int64 {
	return u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// IsZero reports whether no tokens were recorded.
func (u TokenUsage) IsZero() bool {
	return u.Billable() == 0
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.Input += o.Input
	u.Output += o.Output
	u.CacheRead += o.CacheRead
	u.CacheWrite += o.CacheWrite
}

// ContentBlock is one unit of a record's content array.
type ContentBlock struct {
	Type BlockType
	Text string

	// Tool invocation fields (BlockToolUse)
	ToolUseID string
	ToolName  string
	ToolInput map[string]any

	// Tool result fields (BlockToolResult, or attached by the reconciler)
	ResultFor     string // tool_use id this result answers
	ResultContent string
	IsError       bool
	HasResult     bool // set when a result has been attached to a tool_use block
}

// Record is the provider-agnostic decoded unit produced by a format parser.
// A zero usage pointer means the record carried no token accounting.
type Record struct {
	Kind      RecordKind
	Role      string // "user", "assistant", "system", "tool"
	MessageID string
	Model     string
	Timestamp time.Time

	Text   string
	Blocks []ContentBlock
	Usage  *TokenUsage

	// Explicit cost reported by the provider, when present.
	CostUSD *float64

	// Session-scoped metadata some providers attach per record.
	Cwd           string
	GitBranch     string
	Slug          string
	Effort        string
	ContextWindow int64
	Sidechain     bool // record belongs to a spawned sub-agent transcript

	// Marked by the reconciler when the record's content is fully
	// represented as attachments on other records.
	Absorbed bool
}

// Clone returns a deep copy of the record. The reconciler works on clones
// so a decoded sequence is never mutated in place.
func (r Record) Clone() Record {
	out := r
	if r.Usage != nil {
		u := *r.Usage
		out.Usage = &u
	}
	if r.CostUSD != nil {
		c := *r.CostUSD
		out.CostUSD = &c
	}
	if r.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(r.Blocks))
		copy(out.Blocks, r.Blocks)
		for i := range out.Blocks {
			if r.Blocks[i].ToolInput != nil {
				in := make(map[string]any, len(r.Blocks[i].ToolInput))
				for k, v := range r.Blocks[i].ToolInput {
					in[k] = v
				}
				out.Blocks[i].ToolInput = in
			}
		}
	}
	return out
}
