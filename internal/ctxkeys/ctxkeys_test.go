package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	_, ok := LLMModel(ctx)
	assert.False(t, ok)
	_, ok = PromptVersion(WithPromptVersion(ctx, ""))
	assert.False(t, ok)

	ctx = WithLLMModel(ctx, "gpt-4o-mini")
	ctx = WithPromptVersion(ctx, "v2")

	model, ok := LLMModel(ctx)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", model)

	version, ok := PromptVersion(ctx)
	assert.True(t, ok)
	assert.Equal(t, "v2", version)
}
