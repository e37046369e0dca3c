package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsFlatLayout(t *testing.T) {
	var s Statistics
	require.NoError(t, json.Unmarshal([]byte(`{"reading":10,"vocabulary":3,"kanji":1,"total_sections":5}`), &s))

	assert.Equal(t, LayoutFlat, s.Layout)
	assert.Equal(t, 10, s.Count(Reading))
	assert.Equal(t, 0, s.Count(Grammar), "absent key counts as zero")
	assert.False(t, s.Has(Grammar))
	assert.True(t, s.Has(Reading))
	assert.Equal(t, []Category{"kanji"}, s.UnknownCategories())
	assert.Equal(t, 14, s.Sum())
	assert.Nil(t, s.TotalQuestions)
	require.NotNil(t, s.TotalSections)
	assert.Equal(t, 5, *s.TotalSections)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"vocabulary":3,"reading":10,"kanji":1,"total_sections":5}`, string(data))
}

func TestStatisticsRejectsNonIntegers(t *testing.T) {
	var s Statistics
	assert.Error(t, json.Unmarshal([]byte(`{"reading":"ten"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"total_questions":1.5}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"by_part":[]}`), &s))
}

func TestStatisticsNilReceiver(t *testing.T) {
	var s *Statistics
	assert.Equal(t, 0, s.Count(Reading))
	assert.False(t, s.Has(Reading))
	assert.Equal(t, 0, s.Sum())
	assert.Nil(t, s.UnknownCategories())
	assert.Nil(t, s.Clone())
}
