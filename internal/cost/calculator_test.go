package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian-lending/intake-cli/pkg/anthropic"
)

func TestClaudeBasic(t *testing.T) {
	t.Parallel()
	c := NewCalculator(nil)

	got := c.Claude("claude-sonnet-4-5-20250929", anthropic.TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	})
	assert.InDelta(t, 18.00, got, 1e-9)
}

func TestClaudeCacheTokens(t *testing.T) {
	t.Parallel()
	c := NewCalculator(nil)

	got := c.Claude("claude-haiku-4-5-20251001", anthropic.TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	})
	// write at 1.25x input, read at 0.1x input
	assert.InDelta(t, 0.80*1.25+0.80*0.1, got, 1e-9)
}

func TestClaudeUnknownModel(t *testing.T) {
	t.Parallel()
	c := NewCalculator(nil)

	got := c.Claude("some-future-model", anthropic.TokenUsage{InputTokens: 1_000_000})
	assert.Zero(t, got)
}

func TestClaudeZeroUsage(t *testing.T) {
	t.Parallel()
	c := NewCalculator(nil)

	assert.Zero(t, c.Claude("claude-opus-4-6", anthropic.TokenUsage{}))
}

func TestCustomRates(t *testing.T) {
	t.Parallel()
	c := NewCalculator(Rates{
		"custom-model": {Input: 1.00, Output: 2.00},
	})

	got := c.Claude("custom-model", anthropic.TokenUsage{
		InputTokens:  500_000,
		OutputTokens: 250_000,
	})
	assert.InDelta(t, 0.50+0.50, got, 1e-9)
}

func TestDefaultRatesModels(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	for _, model := range []string{
		"claude-haiku-4-5-20251001",
		"claude-sonnet-4-5-20250929",
		"claude-opus-4-6",
	} {
		r, ok := rates[model]
		assert.True(t, ok, model)
		assert.Greater(t, r.Output, r.Input, model)
	}
}
