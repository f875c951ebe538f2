// Package reconcile turns a decoded record sequence into a clean message
// list for display: duplicate streamed fragments are merged and tool
// results are attached to their originating invocations. All transforms
// are pure; the input slice is never mutated.
package reconcile

import "github.com/OptimiLabs/velocity/internal/model"

// MergeFragments collapses records sharing a (role, message id) key into a
// single logical message. Content blocks merge by stable key; the richer
// usage wins (more total tokens, then presence of an explicit cost); the
// earliest timestamp is kept. Records without a message id pass through
// unchanged.
func MergeFragments(records []model.Record) []model.Record {
	type fragKey struct {
		role string
		id   string
	}

	var out []model.Record
	index := make(map[fragKey]int)

	for _, rec := range records {
		if rec.MessageID == "" {
			out = append(out, rec.Clone())
			continue
		}
		key := fragKey{rec.Role, rec.MessageID}
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec.Clone())
			continue
		}
		mergeInto(&out[at], rec)
	}
	return out
}

// mergeInto folds fragment src into dst.
func mergeInto(dst *model.Record, src model.Record) {
	for _, b := range src.Blocks {
		if !hasBlock(dst.Blocks, b) {
			dst.Blocks = append(dst.Blocks, b)
		}
	}
	if src.Text != "" && dst.Text == "" {
		dst.Text = src.Text
	}
	if richerUsage(src, *dst) {
		if src.Usage != nil {
			u := *src.Usage
			dst.Usage = &u
		}
		if src.CostUSD != nil {
			c := *src.CostUSD
			dst.CostUSD = &c
		}
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
	if !src.Timestamp.IsZero() && (dst.Timestamp.IsZero() || src.Timestamp.Before(dst.Timestamp)) {
		dst.Timestamp = src.Timestamp
	}
}

// hasBlock reports whether blocks already contains b under its stable key:
// tool-use id, result id, or literal text.
func hasBlock(blocks []model.ContentBlock, b model.ContentBlock) bool {
	for _, existing := range blocks {
		if existing.Type != b.Type {
			continue
		}
		switch b.Type {
		case model.BlockToolUse:
			if existing.ToolUseID == b.ToolUseID {
				return true
			}
		case model.BlockToolResult:
			if existing.ResultFor == b.ResultFor {
				return true
			}
		default:
			if existing.Text == b.Text {
				return true
			}
		}
	}
	return false
}

// richerUsage reports whether a's usage statistics should replace b's:
// more total tokens wins; on equal tokens the fragment carrying an
// explicit cost figure is preferred.
func richerUsage(a, b model.Record) bool {
	at, bt := int64(0), int64(0)
	if a.Usage != nil {
		at = a.Usage.Billable()
	}
	if b.Usage != nil {
		bt = b.Usage.Billable()
	}
	if at != bt {
		return at > bt
	}
	return a.CostUSD != nil && b.CostUSD == nil
}
