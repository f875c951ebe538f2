package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/source"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSkeleton(t *testing.T, s *Store) {
	t.Helper()
	projects := []source.DiscoveredProject{
		{ID: "proj-a", Name: "api", Path: "/home/dev/api", Provider: model.ProviderClaude, Dir: "/tmp/claude/projects/-home-dev-api"},
		{ID: "codex", Name: "codex", Provider: model.ProviderCodex, Dir: "/tmp/codex/sessions"},
	}
	files := []source.DiscoveredFile{
		{Provider: model.ProviderClaude, ProjectID: "proj-a", SessionID: "sess-1", Path: "/tmp/claude/projects/-home-dev-api/sess-1.jsonl"},
		{Provider: model.ProviderClaude, ProjectID: "proj-a", SessionID: "sess-1/agent-x", Path: "/tmp/claude/projects/-home-dev-api/sess-1/subagents/agent-x.jsonl", IsSubagent: true, ParentSession: "sess-1"},
		{Provider: model.ProviderCodex, ProjectID: "codex", SessionID: "sess-2", Path: "/tmp/codex/sessions/rollout-1.jsonl"},
	}
	if err := s.UpsertSkeletons(projects, files); err != nil {
		t.Fatalf("UpsertSkeletons: %v", err)
	}
}

func sampleSession() *model.Session {
	return &model.Session{
		ID:           "sess-1",
		ProjectID:    "proj-a",
		Provider:     model.ProviderClaude,
		Role:         model.RoleStandalone,
		Slug:         "fix-parser",
		FirstPrompt:  "fix the parser",
		GitBranch:    "main",
		ProjectPath:  "/home/dev/api",
		FilePath:     "/tmp/claude/projects/-home-dev-api/sess-1.jsonl",
		Messages:     4,
		ToolCalls:    2,
		Usage:        model.TokenUsage{Input: 100, Output: 50, CacheRead: 400, CacheWrite: 20},
		TotalCost:    0.042,
		CacheHitRate: 0.7,
		Status:       model.PricingPriced,
		DurationSecs: 3600,
		Tools: map[string]*model.ToolUsage{
			"Edit": {Calls: 2, Errors: 1, Usage: model.TokenUsage{Input: 50, Output: 25}, Cost: 0.02},
		},
		Models: map[string]*model.ModelUsage{
			"claude-opus-4-6": {Messages: 2, Usage: model.TokenUsage{Input: 100, Output: 50}, Cost: 0.042, Status: model.PricingPriced},
		},
		Links: []model.InstructionLink{
			{Path: "/home/dev/api/CLAUDE.md", Method: model.LinkHierarchy},
			{Path: "/home/dev/api/docs/AGENTS.md", Method: model.LinkUsage},
		},
		Files:      []model.FileTouch{{Path: "/home/dev/api/main.go", Category: model.FileCode, Written: true}},
		Summary:    model.Summary{FirstPrompt: "fix the parser", ModifiedFiles: []string{"/home/dev/api/main.go"}},
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ModifiedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestSkeletonsPreserveAggregates(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	if err := s.SaveAggregate(sampleSession(), 1000, 2048); err != nil {
		t.Fatalf("SaveAggregate: %v", err)
	}

	// A second discovery pass must not wipe stored aggregates.
	seedSkeleton(t, s)

	states, err := s.SessionFileStates()
	if err != nil {
		t.Fatalf("SessionFileStates: %v", err)
	}
	st, ok := states["sess-1"]
	if !ok {
		t.Fatal("sess-1 missing from file states")
	}
	if !st.Aggregated || st.MtimeNs != 1000 || st.Size != 2048 {
		t.Errorf("state = %+v, want aggregated at mtime 1000 size 2048", st)
	}
	if states["sess-2"].Aggregated {
		t.Error("sess-2 should not be aggregated")
	}
}

func TestSaveAggregateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	if err := s.SaveAggregate(sampleSession(), 1000, 2048); err != nil {
		t.Fatalf("SaveAggregate: %v", err)
	}

	row, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if row.Messages != 4 || row.ToolCalls != 2 {
		t.Errorf("messages/tools = %d/%d, want 4/2", row.Messages, row.ToolCalls)
	}
	if row.Usage.Input != 100 || row.Usage.CacheRead != 400 {
		t.Errorf("usage = %+v", row.Usage)
	}
	if row.TotalCost != 0.042 || row.Status != model.PricingPriced {
		t.Errorf("cost/status = %v/%s", row.TotalCost, row.Status)
	}
	if row.DurationSecs != 3600 || row.CacheHitRate != 0.7 {
		t.Errorf("duration/cache = %d/%v, want 3600/0.7", row.DurationSecs, row.CacheHitRate)
	}
	if row.FirstPrompt != "fix the parser" {
		t.Errorf("first prompt = %q", row.FirstPrompt)
	}
	if !row.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %v", row.CreatedAt)
	}

	links, err := s.LinkCount("sess-1")
	if err != nil {
		t.Fatalf("LinkCount: %v", err)
	}
	if links != 2 {
		t.Errorf("links = %d, want 2", links)
	}
}

func TestSaveAggregateReplacesChildren(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	sess := sampleSession()
	if err := s.SaveAggregate(sess, 1000, 2048); err != nil {
		t.Fatalf("first save: %v", err)
	}

	sess.Tools = map[string]*model.ToolUsage{"Bash": {Calls: 1}}
	if err := s.SaveAggregate(sess, 2000, 4096); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM session_tools WHERE session_id = 'sess-1'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("tool rows = %d, want 1 after replace", n)
	}

	// Re-saving identical links must not duplicate catalog entries.
	links, _ := s.LinkCount("sess-1")
	if links != 2 {
		t.Errorf("links = %d, want 2", links)
	}
	var files int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM instruction_files").Scan(&files); err != nil {
		t.Fatal(err)
	}
	if files != 2 {
		t.Errorf("instruction files = %d, want 2", files)
	}
}

func TestSetParent(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	if err := s.SetParent("sess-2", "sess-1"); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	row, err := s.GetSession("sess-2")
	if err != nil {
		t.Fatal(err)
	}
	if row.ParentID != "sess-1" || row.Role != model.RoleSubagent {
		t.Errorf("parent/role = %q/%s", row.ParentID, row.Role)
	}
}

func TestDeleteProjectsCascades(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	deleted, err := s.DeleteProjectsNotIn([]string{"codex"})
	if err != nil {
		t.Fatalf("DeleteProjectsNotIn: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	projects, sessions, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if projects != 1 || sessions != 1 {
		t.Errorf("counts = %d/%d, want 1/1", projects, sessions)
	}
}

func TestRecomputeProjectAggregates(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)

	if err := s.SaveAggregate(sampleSession(), 1000, 2048); err != nil {
		t.Fatal(err)
	}
	if err := s.RecomputeProjectAggregates(); err != nil {
		t.Fatalf("RecomputeProjectAggregates: %v", err)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	var projA *model.Project
	for i := range projects {
		if projects[i].ID == "proj-a" {
			projA = &projects[i]
		}
	}
	if projA == nil {
		t.Fatal("proj-a missing")
	}
	if projA.SessionCount != 2 {
		t.Errorf("session count = %d, want 2", projA.SessionCount)
	}
	if projA.Usage.Input != 100 || projA.TotalCost != 0.042 {
		t.Errorf("aggregates = %+v cost %v", projA.Usage, projA.TotalCost)
	}
	if projA.LastActivity.IsZero() {
		t.Error("last activity not set")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetMeta(MetaLastIndexedAt)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}

	if err := s.SetMeta(MetaLastIndexedAt, "2026-03-01T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMeta(MetaLastIndexedAt, "2026-03-02T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetMeta(MetaLastIndexedAt)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026-03-02T10:00:00Z" {
		t.Errorf("meta = %q", got)
	}
}

func TestNuke(t *testing.T) {
	s := openTestStore(t)
	seedSkeleton(t, s)
	if err := s.SaveAggregate(sampleSession(), 1000, 2048); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMeta(MetaEnrichmentVersion, "3"); err != nil {
		t.Fatal(err)
	}

	if err := s.Nuke(); err != nil {
		t.Fatalf("Nuke: %v", err)
	}

	projects, sessions, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if projects != 0 || sessions != 0 {
		t.Errorf("counts after nuke = %d/%d", projects, sessions)
	}
	got, _ := s.GetMeta(MetaEnrichmentVersion)
	if got != "" {
		t.Errorf("meta survived nuke: %q", got)
	}
}
