package aggregate

import (
	"path/filepath"
	"strings"

	"github.com/OptimiLabs/velocity/internal/model"
)

var writingTools = map[string]bool{
	"Write": true, "Edit": true, "MultiEdit": true, "NotebookEdit": true,
}

var codeExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".swift": true, ".kt": true,
	".sh": true, ".sql": true, ".css": true, ".html": true, ".vue": true,
}

var configExtensions = map[string]bool{
	".json": true, ".toml": true, ".yaml": true, ".yml": true, ".ini": true, ".env": true,
}

var instructionBasenames = map[string]bool{
	"CLAUDE.md": true, "AGENTS.md": true, "GEMINI.md": true,
	"CLAUDE.local.md": true, ".cursorrules": true,
}

// CategorizePath buckets a touched file by its path pattern.
func CategorizePath(path string) model.FileCategory {
	base := filepath.Base(path)
	norm := filepath.ToSlash(path)

	switch {
	case instructionBasenames[base]:
		return model.FileInstruction
	case strings.Contains(norm, "/.claude/agents/") || strings.Contains(norm, "/.claude/skills/"):
		return model.FileAgent
	case strings.Contains(norm, "/.claude/") || strings.Contains(norm, "/.codex/") ||
		strings.Contains(norm, "/.gemini/") || configExtensions[filepath.Ext(base)]:
		return model.FileConfig
	case filepath.Ext(base) == ".md" || filepath.Ext(base) == ".rst" || filepath.Ext(base) == ".txt":
		return model.FileKnowledge
	case codeExtensions[filepath.Ext(base)]:
		return model.FileCode
	default:
		return model.FileOther
	}
}

// fileSet tracks distinct file touches in first-seen order, upgrading a
// read to a write when both occur.
type fileSet struct {
	order []string
	byKey map[string]*model.FileTouch
}

func newFileSet() *fileSet {
	return &fileSet{byKey: make(map[string]*model.FileTouch)}
}

func (s *fileSet) touch(path string, written bool) {
	if path == "" {
		return
	}
	if existing, ok := s.byKey[path]; ok {
		if written {
			existing.Written = true
		}
		return
	}
	s.order = append(s.order, path)
	s.byKey[path] = &model.FileTouch{
		Path:     path,
		Category: CategorizePath(path),
		Written:  written,
	}
}

func (s *fileSet) touches() []model.FileTouch {
	out := make([]model.FileTouch, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, *s.byKey[p])
	}
	return out
}

// trivialCommands are read-only shell commands excluded from the notable
// command count.
var trivialCommands = map[string]bool{
	"cat": true, "ls": true, "echo": true, "pwd": true, "head": true,
	"tail": true, "which": true, "env": true, "true": true, "wc": true,
}

// notableCommand reports whether a shell command is worth counting in the
// session summary.
func notableCommand(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	first := cmd
	if i := strings.IndexAny(cmd, " \t"); i > 0 {
		first = cmd[:i]
	}
	return !trivialCommands[filepath.Base(first)]
}
