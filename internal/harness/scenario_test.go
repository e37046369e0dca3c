package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
name: minimal
description: "smallest valid scenario"
record:
  id: x
expect:
  issues: []
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "x", s.Record["id"])
	assert.NotNil(t, s.Expect.Issues, "an empty list is kept distinct from an absent one")
	assert.Nil(t, s.Expect.Diffs)
	assert.Nil(t, s.Expect.Valid)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimal + "recrod: {}\n", "field recrod not found"},
		{"no name", "description: d\nrecord: {id: x}\n", "name is required"},
		{"no description", "name: n\nrecord: {id: x}\n", "description is required"},
		{"no record", "name: n\ndescription: d\n", "record is required"},
		{"bad fields", "name: n\ndescription: d\nfields: colour\nrecord: {id: x}\n", `unknown field "colour"`},
		{"bad issue kind", "name: n\ndescription: d\nrecord: {id: x}\nexpect: {issues: [Oops]}\n", `expect.issues[0]: unknown kind "Oops"`},
		{"bad diff kind", "name: n\ndescription: d\nrecord: {id: x}\nexpect: {diffs: [Nope]}\n", `expect.diffs[0]: unknown kind "Nope"`},
		{"bad part", "name: n\ndescription: d\nrecord: {id: x}\nexpect: {parts: [kanji]}\n", "expect.parts[0]"},
		{"bad statistic", "name: n\ndescription: d\nrecord: {id: x}\nexpect: {statistics: {kanji: 1}}\n", "expect.statistics"},
		{"error with diffs", "name: n\ndescription: d\nrecord: {id: x}\nexpect: {error: UnknownLevel, diffs: []}\n", "expect.error excludes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	_, err := LoadDir(dir)
	require.ErrorContains(t, err, "no scenario files found")

	write("b.yaml", minimal)
	write("notes.txt", "ignored")
	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	write("a.yml", minimal)
	_, err = LoadDir(dir)
	require.ErrorContains(t, err, `scenario "minimal" is already defined`)
}
