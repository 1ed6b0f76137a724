package usage

// Rate holds the unit prices for one provider model, in USD per 1,000
// units. Input and output units are priced independently.
type Rate struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// RateTable maps provider name to model name to unit prices.
//
// The wildcard model "*" provides a provider-wide fallback for models
// without an explicit entry.
type RateTable map[string]map[string]Rate

// Cost computes the cost of one call and reports whether a rate was
// found for the provider/model pair (directly or via the provider's
// wildcard entry). Without a rate the cost is zero.
func (t RateTable) Cost(provider, model string, inputUnits, outputUnits int64) (float64, bool) {
	models, ok := t[provider]
	if !ok {
		return 0, false
	}
	rate, ok := models[model]
	if !ok {
		rate, ok = models["*"]
		if !ok {
			return 0, false
		}
	}
	cost := float64(inputUnits)*rate.InputPer1K/1000 + float64(outputUnits)*rate.OutputPer1K/1000
	return cost, true
}
