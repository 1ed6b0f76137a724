package usage

import (
	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Canonical provider names used by the SDK adapters.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// RecordAnthropic records the usage block of a Claude API response.
//
// Cache creation and cache read tokens are input-side units and are
// counted as input, which slightly overstates cost for cached calls
// priced at a discount. Configure a blended rate if that matters.
func (t *Tracker) RecordAnthropic(model string, u anthropic.Usage) {
	input := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
	t.RecordUsage(ProviderAnthropic, model, input, u.OutputTokens)
}

// RecordOpenAI records the usage block of an OpenAI API response.
func (t *Tracker) RecordOpenAI(model string, u openai.Usage) {
	t.RecordUsage(ProviderOpenAI, model, int64(u.PromptTokens), int64(u.CompletionTokens))
}
