package pricing

import (
	"strings"

	"github.com/OptimiLabs/velocity/internal/model"
)

// Reason explains why usage could not be priced.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonModelUnknown Reason = "model_not_found"
	ReasonMissingRates Reason = "missing_rate_fields"
)

// Result is the outcome of resolving one usage record.
type Result struct {
	Status model.PricingStatus
	Reason Reason
	Rate   Rate
	Match  string // rate-table key the model id resolved to
	Cost   float64
}

// Resolver prices token usage against a rate table. The zero-value Resolver
// uses DefaultRates.
type Resolver struct {
	rates map[string]Rate
}

// NewResolver returns a resolver over the given table; nil means DefaultRates.
// Overrides merge field-wise on top of the base entry for the same key so a
// partial override never silently zeroes the untouched fields.
func NewResolver(overrides map[string]Rate) *Resolver {
	rates := make(map[string]Rate, len(DefaultRates)+len(overrides))
	for k, v := range DefaultRates {
		rates[k] = v
	}
	for k, v := range overrides {
		base, ok := rates[k]
		if !ok {
			rates[k] = v
			continue
		}
		if v.InputPerMTok != 0 {
			base.InputPerMTok = v.InputPerMTok
		}
		if v.OutputPerMTok != 0 {
			base.OutputPerMTok = v.OutputPerMTok
		}
		if v.CacheReadPerMTok != 0 {
			base.CacheReadPerMTok = v.CacheReadPerMTok
		}
		if v.CacheWritePerMTok != 0 {
			base.CacheWritePerMTok = v.CacheWritePerMTok
		}
		rates[k] = base
	}
	return &Resolver{rates: rates}
}

func (r *Resolver) table() map[string]Rate {
	if r == nil || r.rates == nil {
		return DefaultRates
	}
	return r.rates
}

// Lookup finds the rate entry for a model id: exact match first, else the
// longest table key that is a prefix of the id (dated model variants append
// a suffix to a base id). Returns the matched key and false when no entry
// matches at all.
func (r *Resolver) Lookup(modelID string) (Rate, string, bool) {
	rates := r.table()
	if rate, ok := rates[modelID]; ok {
		return rate, modelID, true
	}

	bestKey := ""
	var bestRate Rate
	for key, rate := range rates {
		if len(key) >= len(modelID) {
			continue
		}
		if strings.HasPrefix(modelID, key) && len(key) > len(bestKey) {
			bestKey, bestRate = key, rate
		}
	}
	if bestKey == "" {
		return Rate{}, "", false
	}
	return bestRate, bestKey, true
}

// Resolve prices one usage record. Cost is computed only when the status is
// priced; an unrecognized or incompletely-priced model yields an explicit
// unpriced result, never a fallback rate.
func (r *Resolver) Resolve(modelID string, usage model.TokenUsage) Result {
	if modelID == "" {
		return Result{Status: model.PricingUnpriced, Reason: ReasonModelUnknown}
	}

	rate, match, ok := r.Lookup(modelID)
	if !ok {
		return Result{Status: model.PricingUnpriced, Reason: ReasonModelUnknown}
	}
	if !rate.Valid() {
		return Result{Status: model.PricingUnpriced, Reason: ReasonMissingRates, Rate: rate, Match: match}
	}

	cost := float64(usage.Input)*rate.InputPerMTok/1_000_000 +
		float64(usage.Output)*rate.OutputPerMTok/1_000_000 +
		float64(usage.CacheRead)*rate.CacheReadPerMTok/1_000_000 +
		float64(usage.CacheWrite)*rate.CacheWritePerMTok/1_000_000

	return Result{Status: model.PricingPriced, Rate: rate, Match: match, Cost: cost}
}
