package runner

import "time"

// Summary aggregates the outcomes of one run, in execution order.
type Summary struct {
	RunID    string
	Outcomes []Outcome

	Executed int
	Skipped  int
	Failed   int

	Elapsed time.Duration
}

// OK reports whether no query failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Total is the number of queries seen.
func (s Summary) Total() int { return len(s.Outcomes) }

// Failures returns the failed outcomes.
func (s Summary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusExecuted:
		s.Executed++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
