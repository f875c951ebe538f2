// Package aggregate streams a parsed transcript end-to-end and produces
// the full session aggregate: token totals, cost, per-tool and per-model
// breakdowns, latency percentiles, file touches, and an auto-summary.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/pricing"
	"github.com/OptimiLabs/velocity/internal/source"
)

// Options configures one aggregation pass.
type Options struct {
	Resolver             *pricing.Resolver
	LatencyCeiling       time.Duration // zero means DefaultLatencyCeiling
	DefaultContextWindow int64         // used when no record carries one
	Plan                 string        // billing-plan label stamped on the session
	ProjectPath          string        // fallback when no record carries a cwd
	FileExists           func(path string) bool
}

// Run performs the single forward pass over one session's record stream.
// A record that cannot be interpreted was already dropped by the parser;
// a file that cannot be opened at all surfaces as an error so the indexer
// can leave the session unaggregated without aborting the run.
func Run(p source.Parser, df source.DiscoveredFile, opts Options) (*model.Session, error) {
	if opts.Resolver == nil {
		opts.Resolver = pricing.NewResolver(nil)
	}
	ceiling := opts.LatencyCeiling
	if ceiling <= 0 {
		ceiling = DefaultLatencyCeiling
	}

	s := &model.Session{
		ID:        df.SessionID,
		ProjectID: df.ProjectID,
		Provider:  p.Provider(),
		FilePath:  df.Path,
		Role:      model.RoleStandalone,
		Plan:      opts.Plan,
		Tools:     make(map[string]*model.ToolUsage),
		Models:    make(map[string]*model.ModelUsage),
	}
	if df.IsSubagent {
		s.Role = model.RoleSubagent
		s.ParentID = df.ParentSession
	}

	var (
		lat         = latencyTracker{ceiling: ceiling}
		files       = newFileSet()
		ht          = &headTail{}
		pricedTok   int64
		notableCmds int
		sawErrors   bool
		searched    []string
		searchedSet = map[string]bool{}
		skillSet    = map[string]bool{}
		agentSet    = map[string]bool{}
		toolByID    = map[string]string{}
		minTS       time.Time
		maxTS       time.Time
	)

	err := p.Stream(func(rec model.Record) error {
		ht.push(rec)

		if !rec.Timestamp.IsZero() {
			if minTS.IsZero() || rec.Timestamp.Before(minTS) {
				minTS = rec.Timestamp
			}
			if maxTS.IsZero() || rec.Timestamp.After(maxTS) {
				maxTS = rec.Timestamp
			}
		}

		if s.ProjectPath == "" && rec.Cwd != "" {
			s.ProjectPath = rec.Cwd
		}
		if s.GitBranch == "" && rec.GitBranch != "" {
			s.GitBranch = rec.GitBranch
		}
		if s.Slug == "" && rec.Slug != "" {
			s.Slug = rec.Slug
		}
		if s.Effort == "" && rec.Effort != "" {
			s.Effort = rec.Effort
		}
		if rec.ContextWindow > s.ContextWindow {
			s.ContextWindow = rec.ContextWindow
		}
		// Sidechain transcripts are sub-agent sessions. The parent is
		// resolved later by matching time spans within the project.
		if rec.Sidechain {
			s.Role = model.RoleSubagent
		}

		switch rec.Role {
		case "user":
			s.Messages++
			if text := userText(rec); text != "" && !systemishContent(text) {
				lat.userAt(rec.Timestamp)
			}
		case "assistant":
			s.Messages++
			lat.assistantAt(rec.Timestamp)
		}

		toolBlocks := inspectBlocks(rec, s, files, toolByID, skillSet, agentSet, searchedSet, &searched, &notableCmds, &sawErrors)

		if rec.Usage != nil {
			applyUsage(s, opts.Resolver, rec, toolBlocks, &pricedTok)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Skills = setToSlice(skillSet)
	s.Subagents = setToSlice(agentSet)
	s.SearchedRoots = searched
	s.Files = files.touches()
	s.Latency = lat.stats()
	s.CreatedAt = minTS
	s.ModifiedAt = maxTS
	if !minTS.IsZero() && !maxTS.IsZero() {
		s.DurationSecs = int64(maxTS.Sub(minTS).Seconds())
	}
	if s.ProjectPath == "" {
		s.ProjectPath = opts.ProjectPath
	}
	if s.ContextWindow == 0 {
		s.ContextWindow = opts.DefaultContextWindow
	}

	total := s.Usage.CacheRead + s.Usage.CacheWrite + s.Usage.Input
	if total > 0 {
		s.CacheHitRate = float64(s.Usage.CacheRead) / float64(total)
	}

	switch {
	case s.UnpricedTokens == 0:
		s.Status = model.PricingPriced
	case pricedTok == 0:
		s.Status = model.PricingUnpriced
	default:
		s.Status = model.PricingMixed
	}

	s.Summary = buildSummary(ht, s.Files, notableCmds, sawErrors)
	s.FirstPrompt = s.Summary.FirstPrompt
	s.Links = detectLinks(s, opts.FileExists)

	return s, nil
}

// inspectBlocks walks a record's content blocks: tool calls, thinking,
// file touches, skill and sub-agent detection, tool errors. Returns the
// tool names invoked by this record, used for proportional attribution.
func inspectBlocks(
	rec model.Record,
	s *model.Session,
	files *fileSet,
	toolByID map[string]string,
	skillSet, agentSet, searchedSet map[string]bool,
	searched *[]string,
	notableCmds *int,
	sawErrors *bool,
) []string {
	var toolNames []string

	for _, b := range rec.Blocks {
		switch b.Type {
		case model.BlockThinking:
			s.ThinkingBlocks++

		case model.BlockToolUse:
			s.ToolCalls++
			name := b.ToolName
			if name == "" {
				name = "unknown"
			}
			toolNames = append(toolNames, name)
			if b.ToolUseID != "" {
				toolByID[b.ToolUseID] = name
			}
			if tu := s.Tools[name]; tu == nil {
				s.Tools[name] = &model.ToolUsage{Calls: 1}
			} else {
				tu.Calls++
			}

			if server, ok := mcpServer(name); ok {
				if s.MCPServers == nil {
					s.MCPServers = make(map[string]int)
				}
				s.MCPServers[server]++
			}
			inspectToolInput(name, b.ToolInput, files, skillSet, agentSet, searchedSet, searched, notableCmds)

		case model.BlockToolResult:
			if b.IsError {
				*sawErrors = true
				if name, ok := toolByID[b.ResultFor]; ok {
					if tu := s.Tools[name]; tu != nil {
						tu.Errors++
					}
				}
			}
		}
	}
	return toolNames
}

// inspectToolInput extracts file touches, search roots, skill invocations,
// sub-agent spawns, and shell command notability from one invocation.
func inspectToolInput(
	name string,
	input map[string]any,
	files *fileSet,
	skillSet, agentSet, searchedSet map[string]bool,
	searched *[]string,
	notableCmds *int,
) {
	str := func(key string) string {
		v, _ := input[key].(string)
		return v
	}

	switch name {
	case "Read":
		files.touch(str("file_path"), false)
	case "Write", "Edit", "MultiEdit":
		files.touch(str("file_path"), true)
	case "NotebookEdit":
		files.touch(str("notebook_path"), true)
	case "Grep", "Glob":
		if root := str("path"); root != "" && !searchedSet[root] {
			searchedSet[root] = true
			*searched = append(*searched, root)
		}
	case "Bash":
		if notableCommand(str("command")) {
			*notableCmds++
		}
	case "Skill":
		if skill := firstOf(str("command"), str("skill")); skill != "" {
			skillSet[skill] = true
		}
	case "Task":
		if agent := str("subagent_type"); agent != "" {
			agentSet[agent] = true
		}
	}
}

// applyUsage accumulates one usage-bearing record into the session, model,
// and tool breakdowns. Cost is added only when the record priced; unpriced
// usage is tracked separately, never folded into the total.
func applyUsage(s *model.Session, resolver *pricing.Resolver, rec model.Record, toolNames []string, pricedTok *int64) {
	u := *rec.Usage
	s.Usage.Add(u)

	res := resolver.Resolve(rec.Model, u)
	priced := res.Status == model.PricingPriced
	if priced {
		s.TotalCost += res.Cost
		*pricedTok += u.Billable()
	} else {
		s.UnpricedTokens += u.Billable()
		s.UnpricedMessages++
	}

	key := rec.Model
	if key == "" {
		key = "unknown"
	}
	mu := s.Models[key]
	if mu == nil {
		mu = &model.ModelUsage{Status: res.Status}
		s.Models[key] = mu
	}
	mu.Messages++
	mu.Usage.Add(u)
	if priced {
		mu.Cost += res.Cost
	}
	if mu.Status != res.Status {
		mu.Status = model.PricingMixed
	}

	// A message with n simultaneous tool calls splits its usage 1/n per
	// tool; exact attribution is not recoverable from the transcript.
	if n := len(toolNames); n > 0 {
		share := model.TokenUsage{
			Input:      u.Input / int64(n),
			Output:     u.Output / int64(n),
			CacheRead:  u.CacheRead / int64(n),
			CacheWrite: u.CacheWrite / int64(n),
		}
		costShare := 0.0
		if priced {
			costShare = res.Cost / float64(n)
		}
		for _, name := range toolNames {
			tu := s.Tools[name]
			if tu == nil {
				tu = &model.ToolUsage{}
				s.Tools[name] = tu
			}
			tu.Usage.Add(share)
			tu.Cost += costShare
		}
	}
}

// detectLinks derives the session↔instruction-file associations: files it
// used (agent/skill definitions, instruction files it read) plus the
// hierarchy-based root instruction file of its project.
func detectLinks(s *model.Session, fileExists func(string) bool) []model.InstructionLink {
	var links []model.InstructionLink
	seen := map[string]bool{}

	for _, ft := range s.Files {
		if ft.Category != model.FileInstruction && ft.Category != model.FileAgent {
			continue
		}
		if !seen[ft.Path] {
			seen[ft.Path] = true
			links = append(links, model.InstructionLink{Path: ft.Path, Method: model.LinkUsage})
		}
	}

	if s.ProjectPath != "" && fileExists != nil {
		for _, base := range []string{"CLAUDE.md", "AGENTS.md", "GEMINI.md"} {
			path := s.ProjectPath + "/" + base
			if !seen[path] && fileExists(path) {
				seen[path] = true
				links = append(links, model.InstructionLink{Path: path, Method: model.LinkHierarchy})
			}
		}
	}
	return links
}

// mcpServer extracts the server name from a namespaced MCP tool id of the
// form "mcp__<server>__<tool>".
func mcpServer(toolName string) (string, bool) {
	if !strings.HasPrefix(toolName, "mcp__") {
		return "", false
	}
	rest := strings.TrimPrefix(toolName, "mcp__")
	if i := strings.Index(rest, "__"); i > 0 {
		return rest[:i], true
	}
	if rest != "" {
		return rest, true
	}
	return "", false
}

func setToSlice(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
