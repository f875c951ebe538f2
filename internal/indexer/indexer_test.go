package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
	"github.com/OptimiLabs/velocity/internal/source"
	"github.com/OptimiLabs/velocity/internal/store"
)

const (
	sessionA = `{"type":"user","timestamp":"2026-06-01T10:00:00Z","cwd":"/work/app","message":{"role":"user","content":"fix the bug"}}
{"type":"assistant","timestamp":"2026-06-01T10:00:05Z","message":{"id":"m1","role":"assistant","model":"claude-opus-4-6","content":"done","usage":{"input_tokens":100,"output_tokens":20}}}
`
	sessionB = `{"type":"user","timestamp":"2026-06-02T09:00:00Z","cwd":"/work/app","message":{"role":"user","content":"add a test"}}
{"type":"assistant","timestamp":"2026-06-02T09:00:03Z","message":{"id":"m1","role":"assistant","model":"claude-sonnet-4-6","content":"added","usage":{"input_tokens":60,"output_tokens":10}}}
`
)

type fixture struct {
	claudeRoot string
	geminiRoot string
	st         *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{claudeRoot: t.TempDir(), geminiRoot: t.TempDir()}

	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	f.st = st

	f.write(t, filepath.Join("projects", "-work-app", "sess-a.jsonl"), sessionA)
	f.write(t, filepath.Join("projects", "-work-app", "sess-b.jsonl"), sessionB)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.claudeRoot, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) indexer(t *testing.T) *Indexer {
	t.Helper()
	return New(f.st, Options{
		Roots:      source.Roots{ClaudeDir: f.claudeRoot, GeminiDir: f.geminiRoot},
		BatchWidth: 2,
		DirExists: func(path string) bool {
			return path == "/work" || path == "/work/app"
		},
		FileExists: func(string) bool { return false },
	})
}

func TestIncremental_FirstPassIsFull(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	res, err := ix.Incremental()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !res.FullReindex {
		t.Error("first run should upgrade to full without a prior timestamp")
	}
	if res.Projects != 1 || res.Sessions != 2 || res.Failed != 0 {
		t.Fatalf("first run = %+v", res)
	}

	res, err = ix.Incremental()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Sessions != 0 || res.Skipped != 2 {
		t.Errorf("second run = %+v, want everything skipped", res)
	}
}

func TestIncremental_ChangedFileReaggregated(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(f.claudeRoot, "projects", "-work-app", "sess-a.jsonl")
	f.write(t, filepath.Join("projects", "-work-app", "sess-a.jsonl"), sessionA+
		`{"type":"assistant","timestamp":"2026-06-01T10:05:00Z","message":{"id":"m2","role":"assistant","model":"claude-opus-4-6","content":"more","usage":{"input_tokens":30,"output_tokens":5}}}`+"\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if res.Sessions != 1 || res.Skipped != 1 {
		t.Errorf("run = %+v, want exactly the changed session redone", res)
	}

	row, err := f.st.GetSession("sess-a")
	if err != nil {
		t.Fatal(err)
	}
	if row.Messages != 3 {
		t.Errorf("messages = %d, want 3 after re-aggregation", row.Messages)
	}
}

func TestIncremental_OrphansDeleted(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(f.claudeRoot, "projects", "-work-app", "sess-b.jsonl")); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", res.Deleted)
	}
	_, sessions, err := f.st.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if sessions != 1 {
		t.Errorf("sessions = %d, want 1", sessions)
	}
}

func TestIncremental_OrphansDeletedWhenProjectEmptied(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}

	// The project directory survives but every session file is gone.
	for _, name := range []string{"sess-a.jsonl", "sess-b.jsonl"} {
		if err := os.Remove(filepath.Join(f.claudeRoot, "projects", "-work-app", name)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", res.Deleted)
	}
	projects, sessions, err := f.st.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if sessions != 0 {
		t.Errorf("sessions = %d, want 0", sessions)
	}
	if projects != 1 {
		t.Errorf("projects = %d, want the empty project kept", projects)
	}
}

func TestIncremental_VersionBumpForcesFull(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}
	if err := f.st.SetMeta(store.MetaEnrichmentVersion, "0"); err != nil {
		t.Fatal(err)
	}

	res, err := ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if !res.FullReindex || res.Sessions != 2 {
		t.Errorf("run = %+v, want forced full re-aggregation", res)
	}
	v, _ := f.st.GetMeta(store.MetaEnrichmentVersion)
	if v != "1" {
		t.Errorf("stored version = %q", v)
	}
}

func TestIncremental_FailedFileRetried(t *testing.T) {
	f := newFixture(t)
	// Truncated single-document session fails aggregation entirely.
	broken := filepath.Join(f.geminiRoot, "tmp", "cafe01", "chats", "session-1.json")
	if err := os.MkdirAll(filepath.Dir(broken), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(broken, []byte(`{"sessionId":"g1","messages":[`), 0o600); err != nil {
		t.Fatal(err)
	}
	ix := f.indexer(t)

	res, err := ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Sessions != 2 {
		t.Errorf("run = %+v, want one failure and two aggregated", res)
	}

	// The broken file stays unaggregated, so the next pass retries it
	// while skipping the healthy ones.
	res, err = ix.Incremental()
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Skipped != 2 {
		t.Errorf("retry run = %+v", res)
	}
}

func TestNukeRebuildsFromScratch(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}
	res, err := ix.NukeAndRebuild()
	if err != nil {
		t.Fatalf("Nuke: %v", err)
	}
	if !res.FullReindex || res.Sessions != 2 {
		t.Errorf("nuke run = %+v", res)
	}
}

func TestIncremental_ProjectAggregatesPopulated(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}

	projects, err := f.st.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects", len(projects))
	}
	p := projects[0]
	if p.SessionCount != 2 || p.TotalCost <= 0 {
		t.Errorf("project = %+v, want 2 sessions and a positive cost", p)
	}
	if p.Usage.Input != 160 {
		t.Errorf("input tokens = %d, want 160", p.Usage.Input)
	}
	if p.LastActivity.IsZero() {
		t.Error("last activity not set")
	}
}

func TestIncremental_SidechainSessionLinked(t *testing.T) {
	f := newFixture(t)
	f.write(t, filepath.Join("projects", "-work-app", "sess-side.jsonl"),
		`{"type":"user","timestamp":"2026-06-01T10:00:01Z","isSidechain":true,"message":{"role":"user","content":"explore"}}`+"\n"+
			`{"type":"assistant","timestamp":"2026-06-01T10:00:03Z","message":{"id":"m1","role":"assistant","model":"claude-haiku-4-5","content":"found it","usage":{"input_tokens":10,"output_tokens":5}}}`+"\n")
	ix := f.indexer(t)

	if _, err := ix.Incremental(); err != nil {
		t.Fatal(err)
	}

	row, err := f.st.GetSession("sess-side")
	if err != nil {
		t.Fatal(err)
	}
	if row.Role != model.RoleSubagent {
		t.Errorf("role = %q, want subagent", row.Role)
	}
	if row.ParentID != "sess-a" {
		t.Errorf("parent = %q, want the covering session", row.ParentID)
	}
}

func TestLinkParents_ClosestCoveringSpanWins(t *testing.T) {
	f := newFixture(t)
	ix := f.indexer(t)

	projects := []source.DiscoveredProject{{ID: "p1", Name: "p1", Provider: model.ProviderClaude, Dir: "/x"}}
	files := []source.DiscoveredFile{
		{Provider: model.ProviderClaude, ProjectID: "p1", SessionID: "old", Path: "/x/old.jsonl"},
		{Provider: model.ProviderClaude, ProjectID: "p1", SessionID: "recent", Path: "/x/recent.jsonl"},
		{Provider: model.ProviderClaude, ProjectID: "p1", SessionID: "child", Path: "/x/child.jsonl", IsSubagent: true},
	}
	if err := f.st.UpsertSkeletons(projects, files); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	save := func(id string, role model.SessionRole, created, modified time.Time) {
		t.Helper()
		sess := &model.Session{
			ID: id, ProjectID: "p1", Provider: model.ProviderClaude, Role: role,
			FilePath: "/x/" + id + ".jsonl", Status: model.PricingPriced,
			CreatedAt: created, ModifiedAt: modified,
		}
		if err := f.st.SaveAggregate(sess, 1, 1); err != nil {
			t.Fatal(err)
		}
	}
	save("old", model.RoleStandalone, base, base.Add(2*time.Hour))
	save("recent", model.RoleStandalone, base.Add(30*time.Minute), base.Add(time.Hour))
	save("child", model.RoleSubagent, base.Add(45*time.Minute), base.Add(50*time.Minute))

	if err := ix.linkParents(); err != nil {
		t.Fatal(err)
	}

	row, err := f.st.GetSession("child")
	if err != nil {
		t.Fatal(err)
	}
	if row.ParentID != "recent" {
		t.Errorf("parent = %q, want the closest covering session", row.ParentID)
	}
}
