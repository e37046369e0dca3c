package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mondai/internal/ir"
)

func TestN3Record(t *testing.T) {
	rec := N3Record()
	require.Len(t, rec.Sections, 5)
	assert.Equal(t, 15, rec.QuestionCount())
	assert.Nil(t, rec.Statistics)
	assert.Equal(t, "N3 n3-2023-07", rec.Title)
}

func TestQuestionsAreDistinct(t *testing.T) {
	qs := Questions(3)
	assert.NotEqual(t, string(qs[0]), string(qs[1]))
	assert.Empty(t, Questions(0))
}

func TestStatsTotals(t *testing.T) {
	s := Stats(1, 2, 3, 4)
	assert.Equal(t, 10, *s.TotalQuestions)
	assert.Nil(t, s.TotalSections)
	assert.Equal(t, 3, s.Count(ir.Reading))
}
