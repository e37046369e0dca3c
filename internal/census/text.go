package census

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/mondai/internal/ir"
)

const rule = "======================================================================"

// WriteText renders the census as a per-level breakdown followed by a
// summary table. Numbers are grouped for the given language tag.
func (c *Census) WriteText(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)
	title := cases.Title(tag)
	ew := &errWriter{w: w}

	ew.printf(p, "%s\nJLPT EXAM DATASET CENSUS\n%s\n\n", rule, rule)
	ew.printf(p, "Total exams: %d\n", c.TotalExams)
	if c.Policy != "" {
		ew.printf(p, "Parts classified under policy %s\n", c.Policy)
	}

	for _, l := range c.Levels {
		ew.printf(p, "\n%s\n", l.Level)
		ew.printf(p, "   Total exams: %d\n", l.Exams)
		ew.printf(p, "   Total questions: %d\n", l.Questions)

		if len(l.BySource) > 0 {
			ew.printf(p, "   By source:\n")
			for _, src := range sortedKeys(l.BySource) {
				ew.printf(p, "      - %s: %d exams\n", src, l.BySource[src])
			}
		}
		if l.Questions > 0 {
			ew.printf(p, "   Questions by part:\n")
			for _, part := range partOrder(l.ByPart) {
				ew.printf(p, "      - %s: %d (%.1f%%)\n", title.String(part), l.ByPart[part], l.Percent(part))
			}
		}
		if l.Exams > 0 {
			ew.printf(p, "   Average questions per exam: %.1f\n", l.Average())
		}
	}

	ew.printf(p, "\n%s\nSUMMARY\n%s\n", rule, rule)
	ew.printf(p, "%-8s %-10s %-12s %-10s %-10s %-10s %s\n",
		"Level", "Exams", "Questions", "Vocab", "Grammar", "Reading", "Listening")
	ew.printf(p, "%s\n", strings.Repeat("-", len(rule)))
	for _, l := range c.Levels {
		ew.printf(p, "%-8s %-10d %-12d %-10d %-10d %-10d %d\n",
			l.Level.String(), l.Exams, l.Questions,
			l.ByPart[string(ir.Vocabulary)], l.ByPart[string(ir.Grammar)],
			l.ByPart[string(ir.Reading)], l.ByPart[string(ir.Listening)])
	}

	if len(c.Failures) > 0 {
		ew.printf(p, "\nSkipped %d file(s):\n", len(c.Failures))
		for _, f := range c.Failures {
			ew.printf(p, "   %s: %s\n", f.Path, f.Error)
		}
	}
	return ew.err
}

// partOrder lists the four categories first, always, then any other
// stored part that has questions, alphabetically.
func partOrder(byPart map[string]int) []string {
	out := make([]string, 0, len(ir.Categories)+len(byPart))
	known := make(map[string]bool, len(ir.Categories))
	for _, c := range ir.Categories {
		out = append(out, string(c))
		known[string(c)] = true
	}
	var extra []string
	for part := range byPart {
		if !known[part] {
			extra = append(extra, part)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(p *message.Printer, format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = p.Fprintf(e.w, format, args...)
}
