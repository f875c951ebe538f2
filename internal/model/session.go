// Package model defines domain types for velocity sessions, projects, and usage.
package model

import "time"

// PricingStatus reports whether a session's (or model's) usage could be priced.
type PricingStatus string

const (
	PricingPriced   PricingStatus = "priced"
	PricingMixed    PricingStatus = "mixed"
	PricingUnpriced PricingStatus = "unpriced"
)

// SessionRole distinguishes top-level sessions from spawned sub-agents.
type SessionRole string

const (
	RoleStandalone SessionRole = "standalone"
	RoleSubagent   SessionRole = "subagent"
)

// FileCategory buckets a touched file by its path pattern.
type FileCategory string

const (
	FileKnowledge   FileCategory = "knowledge"
	FileInstruction FileCategory = "instruction"
	FileAgent       FileCategory = "agent"
	FileConfig      FileCategory = "config"
	FileCode        FileCategory = "code"
	FileOther       FileCategory = "other"
)

// LinkMethod records how a session↔instruction-file association was detected.
type LinkMethod string

const (
	LinkHierarchy LinkMethod = "hierarchy"
	LinkUsage     LinkMethod = "usage"
)

// ToolUsage tracks per-tool token usage within a session. Token shares are
// approximate: a message carrying n simultaneous tool calls contributes 1/n
// of its usage to each tool, since the transcript does not record exact
// per-tool attribution.
type ToolUsage struct {
	Calls  int
	Errors int
	Usage  TokenUsage
	Cost   float64
}

// ModelUsage tracks per-model token usage within a session.
type ModelUsage struct {
	Messages int
	Usage    TokenUsage
	Cost     float64
	Status   PricingStatus
}

// LatencyStats summarizes user→assistant response latency samples.
type LatencyStats struct {
	AvgMs   int64
	P50Ms   int64
	P95Ms   int64
	MaxMs   int64
	Samples int
}

// InstructionLink associates a session with an instruction/config file
// that influenced it.
type InstructionLink struct {
	Path   string
	Method LinkMethod
}

// FileTouch is one file read or written during a session.
type FileTouch struct {
	Path     string
	Category FileCategory
	Written  bool
}

// Summary is the lightweight extractive auto-summary built from the head
// and tail of a transcript.
type Summary struct {
	FirstPrompt       string
	ModifiedFiles     []string
	ModifiedOverflow  int
	NotableCommands   int
	EncounteredErrors bool
}

// Session holds the full aggregate for one transcript.
type Session struct {
	ID        string
	ProjectID string
	Provider  Provider
	Role      SessionRole
	ParentID  string // owning session for subagents, empty otherwise

	Slug        string
	FirstPrompt string
	GitBranch   string
	Effort      string
	Plan        string // billing-plan label active when indexed
	ProjectPath string
	FilePath    string

	Messages       int
	ToolCalls      int
	ThinkingBlocks int

	Usage        TokenUsage
	TotalCost    float64
	CacheHitRate float64

	// Unpriced usage is tracked separately and never folded into TotalCost.
	Status           PricingStatus
	UnpricedTokens   int64
	UnpricedMessages int

	Tools  map[string]*ToolUsage
	Models map[string]*ModelUsage

	Latency      LatencyStats
	DurationSecs int64

	Files         []FileTouch
	SearchedRoots []string
	Skills        []string
	Subagents     []string // spawned agent types
	MCPServers    map[string]int
	Links         []InstructionLink

	Summary Summary

	ContextWindow int64
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// Project groups sessions sharing a working-directory root.
type Project struct {
	ID           string
	Name         string
	Path         string // resolved filesystem path; empty when decoding failed
	Provider     Provider
	SessionCount int
	Usage        TokenUsage
	TotalCost    float64
	LastActivity time.Time
}
