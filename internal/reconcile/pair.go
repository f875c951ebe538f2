package reconcile

import "github.com/OptimiLabs/velocity/internal/model"

// PairToolResults attaches each tool result onto the invocation block it
// answers. The first pass indexes invocation blocks by id across cloned
// records; the second attaches result content and the error flag. A
// message left holding only attached results is marked absorbed so a
// renderer can elide it.
func PairToolResults(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}

	type blockRef struct {
		rec   int
		block int
	}
	invocations := make(map[string]blockRef)
	for ri := range out {
		for bi := range out[ri].Blocks {
			b := &out[ri].Blocks[bi]
			if b.Type == model.BlockToolUse && b.ToolUseID != "" {
				invocations[b.ToolUseID] = blockRef{ri, bi}
			}
		}
	}

	for ri := range out {
		attached := 0
		total := len(out[ri].Blocks)
		for bi := range out[ri].Blocks {
			b := out[ri].Blocks[bi]
			if b.Type != model.BlockToolResult {
				continue
			}
			ref, ok := invocations[b.ResultFor]
			if !ok {
				continue
			}
			target := &out[ref.rec].Blocks[ref.block]
			target.ResultContent = b.ResultContent
			target.IsError = b.IsError
			target.HasResult = true
			attached++
		}
		if total > 0 && attached == total && out[ri].Text == "" {
			out[ri].Absorbed = true
		}
	}
	return out
}

// Transcript runs the full reconciliation: fragment merge, then tool
// pairing. Used when rendering a session for display, never during
// indexing.
func Transcript(records []model.Record) []model.Record {
	return PairToolResults(MergeFragments(records))
}
