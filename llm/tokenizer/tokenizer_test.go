package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenTokenizer struct{}

func (brokenTokenizer) CountTokens(string) (int, error)      { return 0, errors.New("offline") }
func (brokenTokenizer) CountMessages([]Message) (int, error) { return 0, errors.New("offline") }
func (brokenTokenizer) MaxTokens() int                       { return 128000 }
func (brokenTokenizer) Name() string                         { return "broken" }

func TestEstimator_Counts(t *testing.T) {
	e := NewEstimatorTokenizer("gpt-4o", 0)
	assert.Equal(t, 4096, e.MaxTokens())

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.CountTokens("cube([10,10,10]);")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = e.CountTokens("钥匙扣")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.CountMessages([]Message{{Role: "user", Content: "abcdefgh"}})
	require.NoError(t, err)
	assert.Equal(t, 2+4+3, n)
}

func TestFallback_UsesEstimatorWhenPrimaryFails(t *testing.T) {
	f := &fallback{primary: brokenTokenizer{}, secondary: NewEstimatorTokenizer("m", 0)}

	n, err := f.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 128000, f.MaxTokens())
	assert.Equal(t, "broken|estimator", f.Name())
}

func TestLookupEncoding(t *testing.T) {
	assert.Equal(t, "o200k_base", lookupEncoding("gpt-4o").encoding)
	assert.Equal(t, "o200k_base", lookupEncoding("gpt-4o-2024-08-06").encoding)
	assert.Equal(t, 128000, lookupEncoding("gpt-4o-mini-2024").maxTokens)
	assert.Equal(t, "cl100k_base", lookupEncoding("unknown-model").encoding)
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenTokenizer("gpt-4o").Name())
}

func TestFitLines(t *testing.T) {
	e := NewEstimatorTokenizer("m", 0)

	short := "cube(1);"
	out, truncated, err := FitLines(e, short, 100)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, short, out)

	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "translate([0,0,1]) cube([1,2,3]);"
	}
	long := strings.Join(lines, "\n")
	out, truncated, err = FitLines(e, long, 40)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.True(t, strings.HasPrefix(out, lines[0]))

	n, err := e.CountTokens(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 40+1)

	_, _, err = FitLines(brokenTokenizer{}, long, 10)
	assert.Error(t, err)
}
