package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LookTrainer/internal/domain"
)

func TestFileSinkWritesRuleset(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "rules.json")
	sink := NewFileSink(path)

	ruleset := domain.CompiledRuleset{
		Version:         42,
		Weights:         map[string]float64{"negativeMedia": 0.4},
		StaticLists:     domain.StaticLists{PositiveKeywords: []string{"runway"}, NegativeKeywords: []string{"poster"}},
		LearnedPatterns: []domain.Pattern{},
	}
	require.NoError(t, sink.Put(context.Background(), ruleset))
	ruleset.Version = 43
	require.NoError(t, sink.Put(context.Background(), ruleset))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got domain.CompiledRuleset
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, int64(43), got.Version)
	assert.Equal(t, []string{"runway"}, got.StaticLists.PositiveKeywords)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
