package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/testutil"
)

func TestMigrateN1FromV1ToV2(t *testing.T) {
	var sections []ir.Section
	for n := 1; n <= 19; n++ {
		sections = append(sections, testutil.Section(n, "", 1))
	}
	rec := testutil.Record("n1-2019-12", ir.LevelN1, sections...)

	m, err := Migrate(rec, table(t, "v1"), table(t, "v2"))
	require.NoError(t, err)

	assert.Equal(t, "v1", m.From)
	assert.Equal(t, "v2", m.To)
	assert.Equal(t, []Move{
		{Mondai: 5, From: ir.Vocabulary, To: ir.Grammar},
		{Mondai: 8, From: ir.Grammar, To: ir.Reading},
		{Mondai: 19, From: "", To: ir.Listening},
	}, m.Moves)
	assert.Contains(t, m.String(), "3 section(s)")
}

func TestMigrateNoMoves(t *testing.T) {
	m, err := Migrate(testutil.N3Record(), table(t, "v1"), table(t, "v2"))
	require.NoError(t, err)
	assert.Empty(t, m.Moves)
	assert.Contains(t, m.String(), "no moves")
}

func TestMigrateThenReconcile(t *testing.T) {
	rec := testutil.Record("n2", ir.LevelN2,
		testutil.Section(6, ir.Vocabulary, 2),
		testutil.Section(7, ir.Grammar, 2),
	)
	v1, v2 := table(t, "v1"), table(t, "v2")

	m, err := Migrate(rec, v1, v2)
	require.NoError(t, err)
	assert.Equal(t, []Move{{Mondai: 6, From: ir.Grammar, To: ir.Vocabulary}}, m.Moves)

	res, err := Reconcile(rec, v2)
	require.NoError(t, err)
	assert.Equal(t, ir.Vocabulary, res.Record.Sections[0].Part)
	assert.Equal(t, ir.Grammar, res.Record.Sections[1].Part)
}

func TestMigrateUnknownLevel(t *testing.T) {
	rec := testutil.Record("x", ir.Level(8))
	_, err := Migrate(rec, table(t, "v1"), table(t, "v2"))
	assert.ErrorIs(t, err, ir.ErrUnknownLevel)
}

func TestClassifyOrEmpty(t *testing.T) {
	v1 := table(t, "v1")

	c, err := classifyOrEmpty(v1, ir.LevelN3, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Vocabulary, c)

	c, err = classifyOrEmpty(v1, ir.LevelN3, 99)
	require.NoError(t, err, "unclassifiable numbers map to the empty category")
	assert.Empty(t, c)

	_, err = classifyOrEmpty(v1, ir.Level(8), 1)
	assert.ErrorIs(t, err, ir.ErrUnknownLevel)
}
