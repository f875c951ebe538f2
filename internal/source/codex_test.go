package source

import (
	"testing"

	"github.com/OptimiLabs/velocity/internal/model"
)

func TestCodexParser_MessageEventsWithInlineUsage(t *testing.T) {
	path := writeTranscript(t, "rollout.jsonl",
		`{"timestamp":"2026-06-01T09:00:00Z","type":"session_meta","payload":{"id":"sess1","cwd":"/work/app","git":{"branch":"dev"},"model":"gpt-5.1-codex","model_reasoning_effort":"high"}}`,
		`{"timestamp":"2026-06-01T09:00:01Z","type":"event_msg","payload":{"type":"user_message","message":"run the tests"}}`,
		`{"timestamp":"2026-06-01T09:00:09Z","type":"event_msg","payload":{"type":"agent_message","message":"done","input":120,"cached_input":40,"output":20,"reasoning_output":5}}`,
	)

	recs := collect(t, NewParser(model.ProviderCodex, path))
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	user := recs[0]
	if user.Role != "user" || user.Text != "run the tests" {
		t.Errorf("user record = %+v", user)
	}
	if user.Usage != nil {
		t.Errorf("user usage = %+v, want nil", user.Usage)
	}
	if user.Cwd != "/work/app" || user.GitBranch != "dev" || user.Effort != "high" {
		t.Errorf("session meta not carried: %+v", user)
	}

	agent := recs[1]
	if agent.Role != "assistant" || agent.Model != "gpt-5.1-codex" {
		t.Errorf("agent record = %+v", agent)
	}
	if agent.Usage == nil {
		t.Fatal("agent usage missing")
	}
	want := model.TokenUsage{Input: 120, Output: 25, CacheRead: 40}
	if *agent.Usage != want {
		t.Errorf("usage = %+v, want %+v (reasoning folds into output)", *agent.Usage, want)
	}
}

func TestCodexParser_TokenCountPrefersLastTurn(t *testing.T) {
	path := writeTranscript(t, "rollout.jsonl",
		`{"timestamp":"2026-06-01T09:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":500,"output_tokens":100},"last_token_usage":{"input_tokens":200,"output_tokens":30},"model_context_window":272000}}}`,
	)

	recs := collect(t, NewParser(model.ProviderCodex, path))
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Usage == nil {
		t.Fatal("usage missing")
	}
	if recs[0].Usage.Input != 200 || recs[0].Usage.Output != 30 {
		t.Errorf("usage = %+v, want last-turn figures", *recs[0].Usage)
	}
	if recs[0].ContextWindow != 272000 {
		t.Errorf("ContextWindow = %d, want 272000", recs[0].ContextWindow)
	}
}

func TestCodexParser_TokenCountDeltaFromTotals(t *testing.T) {
	path := writeTranscript(t, "rollout.jsonl",
		`{"timestamp":"2026-06-01T09:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":100,"output_tokens":10}}}}`,
		`{"timestamp":"2026-06-01T09:01:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":300,"output_tokens":25}}}}`,
	)

	recs := collect(t, NewParser(model.ProviderCodex, path))
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Usage.Input != 100 || recs[0].Usage.Output != 10 {
		t.Errorf("first delta = %+v", *recs[0].Usage)
	}
	if recs[1].Usage.Input != 200 || recs[1].Usage.Output != 15 {
		t.Errorf("second delta = %+v, want per-turn difference of totals", *recs[1].Usage)
	}
}

func TestCodexParser_SkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t, "rollout.jsonl",
		`{"timestamp":"2026-06-01T09:00:00Z","type":"event_msg","payload":{"type":"user_message","message":"hi"}}`,
		`{"broken`,
		`{"timestamp":"2026-06-01T09:00:02Z","type":"event_msg","payload":{"type":"agent_message","message":"hello"}}`,
	)

	recs := collect(t, NewParser(model.ProviderCodex, path))
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}
