package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mondai/internal/ir"
)

func builtin(t *testing.T) *Registry {
	t.Helper()
	reg, err := Builtin()
	require.NoError(t, err)
	return reg
}

func TestClassifyN3Boundaries(t *testing.T) {
	table, err := builtin(t).Get("v2")
	require.NoError(t, err)

	tests := []struct {
		mondai int
		want   ir.Category
	}{
		{1, ir.Vocabulary},
		{5, ir.Vocabulary},
		{6, ir.Grammar},
		{8, ir.Grammar},
		{9, ir.Reading},
		{12, ir.Reading},
		{13, ir.Listening},
		{14, ir.Listening},
		{99, ir.Listening},
	}
	for _, tt := range tests {
		got, err := table.Classify(ir.LevelN3, tt.mondai)
		require.NoError(t, err, "mondai %d", tt.mondai)
		assert.Equal(t, tt.want, got, "mondai %d", tt.mondai)
	}
}

func TestClassifyBelowRange(t *testing.T) {
	table, err := builtin(t).Get("v2")
	require.NoError(t, err)

	for _, n := range []int{0, -1} {
		_, err := table.Classify(ir.LevelN3, n)
		require.Error(t, err)
		assert.ErrorIs(t, err, ir.ErrUnclassifiedSection)
		assert.Equal(t, ir.KindUnclassifiedSection, ir.KindOf(err))
	}
}

func TestClassifyUnknownLevel(t *testing.T) {
	table, err := builtin(t).Get("v2")
	require.NoError(t, err)

	_, err = table.Classify(ir.Level(7), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrUnknownLevel)
	assert.True(t, ir.IsFatal(err))

	_, err = table.CategoryRanges(ir.Level(0))
	assert.ErrorIs(t, err, ir.ErrUnknownLevel)
}

func TestClassifyPastBoundedTable(t *testing.T) {
	table, err := builtin(t).Get("v1")
	require.NoError(t, err)
	assert.True(t, table.Deprecated)

	got, err := table.Classify(ir.LevelN3, 17)
	require.NoError(t, err)
	assert.Equal(t, ir.Listening, got)

	_, err = table.Classify(ir.LevelN3, 18)
	assert.ErrorIs(t, err, ir.ErrUnclassifiedSection)
}

func TestEveryLevelCoversAllPositiveNumbers(t *testing.T) {
	reg := builtin(t)
	for _, version := range reg.Versions() {
		table, err := reg.Get(version)
		require.NoError(t, err)
		if table.Deprecated {
			continue
		}
		for _, level := range ir.Levels {
			ranges, err := table.CategoryRanges(level)
			require.NoError(t, err, "%s %s", version, level)
			require.NotEmpty(t, ranges)
			assert.Equal(t, 1, ranges[0].Lower)
			assert.True(t, ranges[len(ranges)-1].Unbounded(), "%s %s final range", version, level)

			prev := ir.Category("")
			for n := 1; n <= 1000; n++ {
				got, err := table.Classify(level, n)
				require.NoError(t, err, "%s %s mondai %d", version, level, n)
				if prev != "" {
					assert.GreaterOrEqual(t, categoryIndex(got), categoryIndex(prev),
						"%s %s: categories must not go backwards at mondai %d", version, level, n)
				}
				prev = got
			}
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	// Overlapping ranges never pass Check, but Classify itself must still be
	// deterministic on such a table.
	table := &Table{
		Version: "overlap",
		Levels: map[ir.Level][]Range{
			ir.LevelN5: {
				{Category: ir.Vocabulary, Lower: 1, Upper: 5},
				{Category: ir.Grammar, Lower: 3},
			},
		},
	}
	got, err := table.Classify(ir.LevelN5, 4)
	require.NoError(t, err)
	assert.Equal(t, ir.Vocabulary, got)
}

func TestCategoryRangesReturnsCopy(t *testing.T) {
	table, err := builtin(t).Get("v2")
	require.NoError(t, err)

	ranges, err := table.CategoryRanges(ir.LevelN3)
	require.NoError(t, err)
	ranges[0].Category = ir.Listening

	got, err := table.Classify(ir.LevelN3, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Vocabulary, got)
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "reading [9,13)", Range{Category: ir.Reading, Lower: 9, Upper: 13}.String())
	assert.Equal(t, "listening [13,∞)", Range{Category: ir.Listening, Lower: 13}.String())
}

func TestTableHash(t *testing.T) {
	reg := builtin(t)
	v1, err := reg.Get("v1")
	require.NoError(t, err)
	v2, err := reg.Get("v2")
	require.NoError(t, err)

	h1, err := v1.Hash()
	require.NoError(t, err)
	h2, err := v2.Hash()
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)

	again, err := v2.Hash()
	require.NoError(t, err)
	assert.Equal(t, h2, again, "hash must be stable")
}

func categoryIndex(c ir.Category) int {
	for i, known := range ir.Categories {
		if known == c {
			return i
		}
	}
	return -1
}
