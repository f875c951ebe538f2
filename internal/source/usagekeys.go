package source

import (
	"encoding/json"

	"github.com/OptimiLabs/velocity/internal/model"
)

// The same metric appears under many key names across providers. Each
// metric resolves through an ordered candidate list, first hit wins, so
// the aggregator never needs per-provider branching.
var (
	inputKeys = []string{
		"input_tokens", "inputTokens", "prompt_tokens", "promptTokenCount", "input",
	}
	outputKeys = []string{
		"output_tokens", "outputTokens", "completion_tokens", "candidatesTokenCount", "output",
	}
	reasoningKeys = []string{
		"reasoning_output_tokens", "reasoning_tokens", "thoughtsTokenCount", "thoughts", "reasoning_output",
	}
	cacheReadKeys = []string{
		"cache_read_input_tokens", "cached_input_tokens", "cachedContentTokenCount",
		"cache_read_tokens", "cached_input", "cached",
	}
	cacheWriteKeys = []string{
		"cache_creation_input_tokens", "cache_write_tokens", "cache_creation",
	}
)

// lookupTokens tries each candidate key in priority order and returns the
// first numeric value found.
func lookupTokens(raw map[string]json.RawMessage, keys []string) int64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			continue
		}
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

// decodeUsage maps a raw usage object onto the canonical token counters.
// Reasoning output folds into the output counter. Returns nil when every
// counter is zero so callers can distinguish "no usage" from zero usage.
func decodeUsage(raw map[string]json.RawMessage) *model.TokenUsage {
	if len(raw) == 0 {
		return nil
	}
	u := model.TokenUsage{
		Input:      lookupTokens(raw, inputKeys),
		Output:     lookupTokens(raw, outputKeys) + lookupTokens(raw, reasoningKeys),
		CacheRead:  lookupTokens(raw, cacheReadKeys),
		CacheWrite: lookupTokens(raw, cacheWriteKeys),
	}
	if u.IsZero() {
		return nil
	}
	return &u
}
