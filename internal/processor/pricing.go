package processor

import "math"

// RawQuote is the pricing result handed back by a quote-request handler.
type RawQuote struct {
	Price          float64
	RatePerMillion float64
	Tokens         int
}

// PricingFunc computes a quote for model given tokens, returning ok=false
// to let the next entry in the pipeline try. New wires a single-entry
// pipeline backed by Config.ChargePerMillion when Config.PricingPipeline
// is nil; additional entries
// (e.g. per-model overrides) can be layered in without changing this
// package's contract.
type PricingFunc func(model string, tokens int) (RawQuote, bool)

// flatRatePipeline builds the one-entry pricing pipeline used by default:
// a single rate applied uniformly across models.
func flatRatePipeline(ratePerMillion float64) []PricingFunc {
	return []PricingFunc{
		func(_ string, tokens int) (RawQuote, bool) {
			price := roundTo6(float64(tokens) / 1_000_000 * ratePerMillion)
			return RawQuote{Price: price, RatePerMillion: ratePerMillion, Tokens: tokens}, true
		},
	}
}

func roundTo6(v float64) float64 {
	const scale = 1_000_000
	return math.Round(v*scale) / scale
}

// price runs the pipeline, returning the first non-nil result.
func price(pipeline []PricingFunc, model string, tokens int) (RawQuote, bool) {
	for _, fn := range pipeline {
		if q, ok := fn(model, tokens); ok {
			return q, true
		}
	}
	return RawQuote{}, false
}
