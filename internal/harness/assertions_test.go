package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/mondai/internal/ir"
)

func TestStatValue(t *testing.T) {
	s := &ir.Statistics{
		ByPart:         map[ir.Category]int{ir.Reading: 4},
		TotalQuestions: ir.IntPtr(4),
	}
	got, ok := statValue(s, "reading")
	assert.True(t, ok)
	assert.Equal(t, 4, got)

	_, ok = statValue(s, "listening")
	assert.False(t, ok, "absent keys are reported as absent, not zero")

	got, ok = statValue(s, statTotalQuestions)
	assert.True(t, ok)
	assert.Equal(t, 4, got)

	_, ok = statValue(s, statTotalSections)
	assert.False(t, ok)

	_, ok = statValue(nil, "reading")
	assert.False(t, ok)
}

func TestSortedStatKeys(t *testing.T) {
	keys := sortedStatKeys(map[string]int{
		"total_sections":  1,
		"listening":       1,
		"total_questions": 1,
		"vocabulary":      1,
	})
	assert.Equal(t, []string{"vocabulary", "listening", "total_questions", "total_sections"}, keys)
}

func TestAssertionErrorMessage(t *testing.T) {
	err := &AssertionError{Type: "diffs", Expected: "[A]", Actual: "[]"}
	assert.Equal(t, "diffs: expected [A], got []", err.Error())
}
