package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"category", Reading, `"reading"`},
		{"level", LevelN3, "3"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"count map", map[string]int{"reading": 3, "grammar": 3}, `{"grammar":3,"reading":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"statistics": map[string]any{"vocabulary": 3, "listening": 6},
		"level":      LevelN3,
		"id":         "n3-2023-07",
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"n3-2023-07","level":3,"statistics":{"listening":6,"vocabulary":3}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+1F600 sorts after U+FF61 byte-wise but before it in UTF-16 code units.
	obj := map[string]any{"\U0001F600": 1, "\uFF61": 2}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFF61\":2}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{"question": "<b>漢字</b> & かな"})
	require.NoError(t, err)
	assert.Equal(t, `{"question":"<b>漢字</b> & かな"}`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"float", 1.5},
		{"null", nil},
		{"nested null", map[string]any{"a": []any{nil}}},
		{"unsupported", struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "\u304C" precomposed and as U+304B plus a combining dakuten.
	composed, err := MarshalCanonical(map[string]any{"\u304C": "\u304C"})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(map[string]any{"\u304B\u3099": "\u304B\u3099"})
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `is \u2028`, `"is \\u2028"`},
		{"mixed", "literal \\u2028 and actual \u2028", "\"literal \\\\u2028 and actual \u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalCompactOutput(t *testing.T) {
	result, err := MarshalCanonical(map[string]any{
		"sections": []any{map[string]any{"mondai": 1, "part": Vocabulary}},
		"valid":    true,
	})
	require.NoError(t, err)
	assert.NotContains(t, string(result), " ")
	assert.NotContains(t, string(result), "\n")
}
