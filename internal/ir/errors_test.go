package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCodes(t *testing.T) {
	assert.Equal(t, "E201", KindMalformedRecord.Code())
	assert.Equal(t, "E202", KindUnknownLevel.Code())
	assert.Equal(t, "E208", KindStatisticsMismatch.Code())
	assert.Equal(t, "E200", Kind("Bogus").Code())

	assert.True(t, KindMalformedRecord.Fatal())
	assert.True(t, KindUnknownLevel.Fatal())
	assert.False(t, KindDuplicateSection.Fatal())
}

func TestRecordErrorWrapsSentinel(t *testing.T) {
	err := NewRecordError(KindUnknownLevel, "n6-x", "level", "%s is not registered in policy %s", Level(6), "v2")

	assert.Equal(t, "E202 n6-x: level: unknown level: N6 is not registered in policy v2", err.Error())
	assert.ErrorIs(t, err, ErrUnknownLevel)
	assert.Equal(t, KindUnknownLevel, KindOf(fmt.Errorf("load: %w", err)))
	assert.True(t, IsFatal(err))
}

func TestKindOfSentinels(t *testing.T) {
	wrapped := fmt.Errorf("%w: mondai 18", ErrUnclassifiedSection)
	assert.Equal(t, KindUnclassifiedSection, KindOf(wrapped))
	assert.False(t, IsFatal(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("disk full")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRecordErrorWithoutSentinel(t *testing.T) {
	err := NewRecordError(KindRenumbered, "", "", "mondai %d renumbered", 7)
	assert.Equal(t, "E210: mondai 7 renumbered", err.Error())
	assert.Equal(t, KindRenumbered, KindOf(err))
}
