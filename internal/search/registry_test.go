package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Defaults(t *testing.T) {
	fn, err := Lookup("")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	for _, name := range []string{StrategyHybrid, StrategyLexical, StrategySemantic} {
		fn, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}
}

func TestLookup_UnknownListsAvailable(t *testing.T) {
	_, err := Lookup("fuzzy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid")
	assert.Contains(t, err.Error(), "lexical")
	assert.Contains(t, err.Error(), "semantic")
}

func TestRegister_CustomStrategy(t *testing.T) {
	called := false
	Register("custom-test", func(_ context.Context, _ *Engine, _ string, _ int) ([]*FusedResult, error) {
		called = true
		return nil, nil
	})

	fn, err := Lookup("custom-test")
	require.NoError(t, err)

	_, err = fn(context.Background(), nil, "q", 1)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, Strategies(), "custom-test")
}

func TestStrategies_Sorted(t *testing.T) {
	names := Strategies()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
