package source

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
)

// Roots holds the provider storage directories to scan. Empty entries are
// skipped.
type Roots struct {
	ClaudeDir string // contains projects/<encoded>/<uuid>.jsonl
	CodexDir  string // contains sessions/**/rollout-*.jsonl
	GeminiDir string // contains tmp/<hash>/chats/*.json
}

// DiscoveredProject is one project grouping found during a scan.
type DiscoveredProject struct {
	ID       string
	Name     string
	Dir      string // backing storage directory
	Path     string // decoded filesystem path; empty when derivation failed
	Provider model.Provider
	ModTime  time.Time
}

// DiscoveredFile is one session transcript candidate found during a scan.
type DiscoveredFile struct {
	Provider      model.Provider
	Path          string
	ProjectID     string
	SessionID     string
	IsSubagent    bool
	ParentSession string // for subagents: owning session id
	ModTime       time.Time
	Size          int64
}

// ScanResult is the full output of a discovery pass.
type ScanResult struct {
	Projects []DiscoveredProject
	Files    []DiscoveredFile
}

// Scan enumerates every project and session candidate under the given
// provider roots. Unreadable entries are skipped, not fatal.
func Scan(roots Roots, dirExists DirExistsFunc) (*ScanResult, error) {
	res := &ScanResult{}
	if roots.ClaudeDir != "" {
		scanClaude(res, roots.ClaudeDir, dirExists)
	}
	if roots.CodexDir != "" {
		scanCodex(res, roots.CodexDir)
	}
	if roots.GeminiDir != "" {
		scanGemini(res, roots.GeminiDir)
	}
	return res, nil
}

// scanClaude walks projects/<encoded>/. Main sessions sit directly in the
// project directory; sub-agent transcripts nest under
// <session-uuid>/subagents/ and are reported as additional candidates of
// the same project.
func scanClaude(res *ScanResult, root string, dirExists DirExistsFunc) {
	projectsDir := filepath.Join(root, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		encoded := entry.Name()
		dir := filepath.Join(projectsDir, encoded)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		decoded := DecodeProjectPath(encoded, dirExists)
		proj := DiscoveredProject{
			ID:       encoded,
			Name:     projectDisplayName(encoded, decoded),
			Dir:      dir,
			Path:     decoded,
			Provider: model.ProviderClaude,
			ModTime:  info.ModTime(),
		}
		res.Projects = append(res.Projects, proj)

		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if filepath.Ext(path) != ".jsonl" {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}

			rel, _ := filepath.Rel(dir, path)
			parts := strings.Split(rel, string(filepath.Separator))
			name := strings.TrimSuffix(d.Name(), ".jsonl")

			df := DiscoveredFile{
				Provider:  model.ProviderClaude,
				Path:      path,
				ProjectID: encoded,
				SessionID: name,
				ModTime:   fi.ModTime(),
				Size:      fi.Size(),
			}
			// <session-uuid>/subagents/agent-<id>.jsonl
			if len(parts) >= 3 && parts[1] == "subagents" {
				df.IsSubagent = true
				df.ParentSession = parts[0]
				df.SessionID = parts[0] + "/" + name
			}
			res.Files = append(res.Files, df)
			return nil
		})
	}
}

// scanCodex walks sessions/YYYY/MM/DD/rollout-*.jsonl. The layout is
// unambiguous; all sessions group under one provider-level project and the
// real working directory comes out of the transcript during aggregation.
func scanCodex(res *ScanResult, root string) {
	sessionsDir := filepath.Join(root, "sessions")
	info, err := os.Stat(sessionsDir)
	if err != nil || !info.IsDir() {
		return
	}

	res.Projects = append(res.Projects, DiscoveredProject{
		ID:       "codex",
		Name:     "codex",
		Dir:      sessionsDir,
		Provider: model.ProviderCodex,
		ModTime:  info.ModTime(),
	})

	_ = filepath.WalkDir(sessionsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "rollout-") || filepath.Ext(name) != ".jsonl" {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		res.Files = append(res.Files, DiscoveredFile{
			Provider:  model.ProviderCodex,
			Path:      path,
			ProjectID: "codex",
			SessionID: strings.TrimSuffix(strings.TrimPrefix(name, "rollout-"), ".jsonl"),
			ModTime:   fi.ModTime(),
			Size:      fi.Size(),
		})
		return nil
	})
}

// scanGemini walks tmp/<hash>/chats/*.json; each hash directory is one
// project.
func scanGemini(res *ScanResult, root string) {
	tmpDir := filepath.Join(root, "tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		hash := entry.Name()
		chatsDir := filepath.Join(tmpDir, hash, "chats")
		chats, err := os.ReadDir(chatsDir)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		res.Projects = append(res.Projects, DiscoveredProject{
			ID:       "gemini-" + hash,
			Name:     shortHash(hash),
			Dir:      filepath.Join(tmpDir, hash),
			Provider: model.ProviderGemini,
			ModTime:  info.ModTime(),
		})

		for _, chat := range chats {
			if chat.IsDir() || filepath.Ext(chat.Name()) != ".json" {
				continue
			}
			fi, err := chat.Info()
			if err != nil {
				continue
			}
			res.Files = append(res.Files, DiscoveredFile{
				Provider:  model.ProviderGemini,
				Path:      filepath.Join(chatsDir, chat.Name()),
				ProjectID: "gemini-" + hash,
				SessionID: strings.TrimSuffix(chat.Name(), ".json"),
				ModTime:   fi.ModTime(),
				Size:      fi.Size(),
			})
		}
	}
}

// projectDisplayName derives a human-readable name for an encoded project
// directory, preferring the final component of the decoded path.
func projectDisplayName(encoded, decoded string) string {
	if decoded != "" {
		return filepath.Base(decoded)
	}
	parts := strings.Split(encoded, "-")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return encoded
}

func shortHash(h string) string {
	if len(h) > 12 {
		return "gemini-" + h[:12]
	}
	return "gemini-" + h
}
