package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/mondai/internal/ir"
)

// Questions returns n distinct opaque question payloads.
func Questions(n int) []ir.Question {
	out := make([]ir.Question, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"number":%d,"question":"問題%d"}`, i+1, i+1))
	}
	return out
}

// Section builds a section with the given number, stored part and question count.
func Section(mondai int, part ir.Category, questions int) ir.Section {
	return ir.Section{Mondai: mondai, Part: part, Questions: Questions(questions)}
}

// Record builds a well-formed official record without statistics.
func Record(id string, level ir.Level, sections ...ir.Section) *ir.Record {
	if sections == nil {
		sections = []ir.Section{}
	}
	return &ir.Record{
		ID:       id,
		Title:    fmt.Sprintf("%s %s", level, id),
		Level:    level,
		Type:     "official",
		Sections: sections,
	}
}

// N3Record is the N3 exam with sections 1, 6, 9, 13 and 14, three
// questions each, every part stored correctly and no statistics.
func N3Record() *ir.Record {
	return Record("n3-2023-07", ir.LevelN3,
		Section(1, ir.Vocabulary, 3),
		Section(6, ir.Grammar, 3),
		Section(9, ir.Reading, 3),
		Section(13, ir.Listening, 3),
		Section(14, ir.Listening, 3),
	)
}

// Stats builds a flat statistics block with totals.
func Stats(vocabulary, grammar, reading, listening int) *ir.Statistics {
	total := vocabulary + grammar + reading + listening
	return &ir.Statistics{
		ByPart: map[ir.Category]int{
			ir.Vocabulary: vocabulary,
			ir.Grammar:    grammar,
			ir.Reading:    reading,
			ir.Listening:  listening,
		},
		TotalQuestions: ir.IntPtr(total),
	}
}
