// Package pricing resolves model identifiers against a versioned rate table
// and computes itemized token costs.
package pricing

import "math"

// Rate holds per-million-token prices for one model. A NaN or negative
// field marks the rate as unusable for billing.
type Rate struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheReadPerMTok  float64
	CacheWritePerMTok float64
}

// Valid reports whether every required rate field is usable.
func (r Rate) Valid() bool {
	for _, f := range []float64{r.InputPerMTok, r.OutputPerMTok, r.CacheReadPerMTok, r.CacheWritePerMTok} {
		if math.IsNaN(f) || f < 0 {
			return false
		}
	}
	return true
}

// DefaultRates maps model base identifiers to their pricing. Dated variants
// (e.g. "claude-opus-4-6-20260205") resolve via longest-prefix match.
var DefaultRates = map[string]Rate{
	"claude-opus-4-6": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheReadPerMTok: 0.50, CacheWritePerMTok: 6.25,
	},
	"claude-opus-4-5": {
		InputPerMTok: 5.00, OutputPerMTok: 25.00,
		CacheReadPerMTok: 0.50, CacheWritePerMTok: 6.25,
	},
	"claude-opus-4-1": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheReadPerMTok: 1.50, CacheWritePerMTok: 18.75,
	},
	"claude-opus-4": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheReadPerMTok: 1.50, CacheWritePerMTok: 18.75,
	},
	"claude-sonnet-4-6": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75,
	},
	"claude-sonnet-4-5": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75,
	},
	"claude-sonnet-4": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75,
	},
	"claude-haiku-4-5": {
		InputPerMTok: 1.00, OutputPerMTok: 5.00,
		CacheReadPerMTok: 0.10, CacheWritePerMTok: 1.25,
	},
	"claude-haiku-3-5": {
		InputPerMTok: 0.80, OutputPerMTok: 4.00,
		CacheReadPerMTok: 0.08, CacheWritePerMTok: 1.00,
	},
	"gpt-5.2": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gpt-5.1": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gpt-5.1-codex": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gpt-5-codex": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gpt-5": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gpt-5-mini": {
		InputPerMTok: 0.25, OutputPerMTok: 2.00,
		CacheReadPerMTok: 0.025, CacheWritePerMTok: 0,
	},
	"gemini-3-pro": {
		InputPerMTok: 2.00, OutputPerMTok: 12.00,
		CacheReadPerMTok: 0.20, CacheWritePerMTok: 0,
	},
	"gemini-2.5-pro": {
		InputPerMTok: 1.25, OutputPerMTok: 10.00,
		CacheReadPerMTok: 0.125, CacheWritePerMTok: 0,
	},
	"gemini-2.5-flash": {
		InputPerMTok: 0.30, OutputPerMTok: 2.50,
		CacheReadPerMTok: 0.03, CacheWritePerMTok: 0,
	},
}
