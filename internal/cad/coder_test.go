package cad

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/tokenizer"
	"github.com/shalynjjj/prompt2CAD/testutil"
	"github.com/shalynjjj/prompt2CAD/testutil/mocks"
	"github.com/shalynjjj/prompt2CAD/types"
)

func newTestCoder(p llm.Provider, cfg CoderConfig) *Coder {
	return NewCoder(p, tokenizer.NewEstimatorTokenizer(cfg.Model, 0), cfg, zap.NewNop())
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "cube(10);", "cube(10);"},
		{"fenced with lang", "```openscad\ncube(10);\n```", "cube(10);"},
		{"fenced without lang", "```\nsphere(5);\n```", "sphere(5);"},
		{"surrounding whitespace", "\n\n```scad\ncube(1);\n```\n", "cube(1);"},
		{"inner fence kept", "a();\n```\nb();", "a();\n```\nb();"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMarkdown(tt.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	fresh := BuildPrompt("a cube", "")
	assert.Contains(t, fresh, `User Request: "a cube"`)
	assert.NotContains(t, fresh, "EXISTING")

	revise := BuildPrompt("make it taller", "cube([1,1,1]);")
	assert.Contains(t, revise, "EXISTING OpenSCAD code")
	assert.Contains(t, revise, "cube([1,1,1]);")
	assert.Contains(t, revise, `"make it taller"`)
}

func TestCoder_GenerateFirstTurn(t *testing.T) {
	p := mocks.NewSuccessProvider("```openscad\n$fn=100;\nsphere(5);\n```").WithTokenUsage(120, 30)
	c := newTestCoder(p, CoderConfig{Model: "gpt-4o"})

	gen, err := c.Generate(testutil.TestContext(t), "a ball", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "$fn=100;\nsphere(5);", gen.Code)
	assert.Equal(t, "gpt-4o", gen.Model)
	assert.Equal(t, 120, gen.Usage.PromptTokens)
	assert.False(t, gen.Truncated)

	req := p.GetLastCall().Request
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Empty(t, req.Messages[1].Images)
	assert.InDelta(t, 0.0, float64(req.Temperature), 1e-9)
}

func TestCoder_GenerateAttachesReferenceImage(t *testing.T) {
	p := mocks.NewSuccessProvider("cube(1);")
	c := newTestCoder(p, DefaultCoderConfig())

	_, err := c.Generate(testutil.TestContext(t), "like this", "", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	user := p.GetLastCall().Request.Messages[1]
	require.Len(t, user.Images, 1)
	assert.True(t, strings.HasPrefix(user.Images[0].URL, "data:image/png;base64,"))
}

func TestCoder_TruncatesPreviousCode(t *testing.T) {
	var lines []string
	for i := 0; i < 400; i++ {
		lines = append(lines, fmt.Sprintf("translate([%d,0,0]) cube([1,1,1]);", i))
	}
	previous := strings.Join(lines, "\n")

	p := mocks.NewSuccessProvider("cube(2);")
	c := newTestCoder(p, CoderConfig{Model: "gpt-4o", CodeBudget: 100})

	gen, err := c.Generate(testutil.TestContext(t), "bigger", previous, nil)
	require.NoError(t, err)
	assert.True(t, gen.Truncated)

	prompt := p.GetLastCall().Request.Messages[1].Content
	assert.Contains(t, prompt, tokenizer.TruncationMarker)
	assert.Contains(t, prompt, lines[0])
	assert.NotContains(t, prompt, lines[len(lines)-1])
}

func TestCoder_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty prompt", func(t *testing.T) {
		c := newTestCoder(mocks.NewMockProvider(), DefaultCoderConfig())
		_, err := c.Generate(ctx, "  ", "", nil)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	})

	t.Run("provider failure keeps message", func(t *testing.T) {
		upstream := &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}
		c := newTestCoder(mocks.NewErrorProvider(upstream), DefaultCoderConfig())
		_, err := c.Generate(ctx, "cube", "", nil)
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrCollaboratorFailure))
		assert.Contains(t, err.Error(), "slow down")
	})

	t.Run("empty answer", func(t *testing.T) {
		c := newTestCoder(mocks.NewSuccessProvider("  \n "), DefaultCoderConfig())
		_, err := c.Generate(ctx, "cube", "", nil)
		assert.True(t, types.IsErrorCode(err, types.ErrCollaboratorFailure))
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestCoder(mocks.NewErrorProvider(context.Canceled), DefaultCoderConfig())
		_, err := c.Generate(testutil.CancelledContext(), "cube", "", nil)
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
