package pipeline

import (
	"sort"

	"github.com/roach88/mondai/internal/ir"
)

// LevelSummary counts outcomes for one level.
type LevelSummary struct {
	Level       ir.Level `json:"level"`
	Total       int      `json:"total"`
	Updated     int      `json:"updated"`
	WouldUpdate int      `json:"would_update"`
	Unchanged   int      `json:"unchanged"`
	Failed      int      `json:"failed"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID   string         `json:"run_id"`
	Command string         `json:"command"`
	Policy  string         `json:"policy"`
	DryRun  bool           `json:"dry_run"`
	Levels  []LevelSummary `json:"levels"`
	Results []Result       `json:"results"`
}

func (s *Summary) add(res Result) {
	s.Results = append(s.Results, res)

	i := sort.Search(len(s.Levels), func(i int) bool { return s.Levels[i].Level >= res.Entry.Level })
	if i == len(s.Levels) || s.Levels[i].Level != res.Entry.Level {
		s.Levels = append(s.Levels, LevelSummary{})
		copy(s.Levels[i+1:], s.Levels[i:])
		s.Levels[i] = LevelSummary{Level: res.Entry.Level}
	}
	ls := &s.Levels[i]
	ls.Total++
	switch res.Outcome {
	case ir.OutcomeUpdated:
		ls.Updated++
	case ir.OutcomeWouldUpdate:
		ls.WouldUpdate++
	case ir.OutcomeUnchanged:
		ls.Unchanged++
	case ir.OutcomeFailed:
		ls.Failed++
	}
}

func (s *Summary) sum(f func(LevelSummary) int) int {
	n := 0
	for _, l := range s.Levels {
		n += f(l)
	}
	return n
}

// Total returns how many records were processed.
func (s *Summary) Total() int { return s.sum(func(l LevelSummary) int { return l.Total }) }

// Updated returns how many records were written, or would be in a dry run.
func (s *Summary) Updated() int {
	return s.sum(func(l LevelSummary) int { return l.Updated + l.WouldUpdate })
}

// Failed returns how many records could not be processed.
func (s *Summary) Failed() int { return s.sum(func(l LevelSummary) int { return l.Failed }) }

// Failures returns the failed results in entry order.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Outcome == ir.OutcomeFailed {
			out = append(out, r)
		}
	}
	return out
}
