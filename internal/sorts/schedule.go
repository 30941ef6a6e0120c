package sorts

import (
	"sort"
	"time"

	"github.com/sawpanic/factorrun/internal/config"
)

// FormationDates filters the panel's month-ends down to formation dates for
// the configured frequency: every period for monthly, the last period of each
// calendar quarter for quarterly, and the last period of each fiscal year
// (ending in cfg.FiscalYearEndMonth) for annual.
func FormationDates(cfg config.Config, months []time.Time) []time.Time {
	switch cfg.Frequency {
	case config.Quarterly:
		return lastPerBucket(months, func(t time.Time) int {
			return t.Year()*4 + (int(t.Month())-1)/3
		})
	case config.Annual:
		end := int(cfg.FiscalYearEndMonth)
		return lastPerBucket(months, func(t time.Time) int {
			// Fiscal year label: the year in which the fiscal year ends.
			if int(t.Month()) > end {
				return t.Year() + 1
			}
			return t.Year()
		})
	default:
		return append([]time.Time(nil), months...)
	}
}

func lastPerBucket(months []time.Time, bucket func(time.Time) int) []time.Time {
	var out []time.Time
	for i, m := range months {
		if i+1 == len(months) || bucket(months[i+1]) != bucket(m) {
			out = append(out, m)
		}
	}
	return out
}

// Schedule is an ordered index of formation assignments supporting
// predecessor lookup. Dates without an assignment (no eligible entities) are
// simply absent.
type Schedule struct {
	dates       []time.Time
	assignments map[time.Time]*Assignment
}

// NewSchedule builds the index from the sparse assignment set. Nil entries
// are skipped.
func NewSchedule(assignments []*Assignment) *Schedule {
	s := &Schedule{assignments: make(map[time.Time]*Assignment)}
	for _, a := range assignments {
		if a == nil {
			continue
		}
		s.assignments[a.Date] = a
		s.dates = append(s.dates, a.Date)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s
}

// Len returns the number of formation dates with an assignment.
func (s *Schedule) Len() int { return len(s.dates) }

// Before returns the assignment of the most recent formation date strictly
// before p, or nil when none exists yet. Information formed at d is never
// applied to periods at or before d.
func (s *Schedule) Before(p time.Time) *Assignment {
	// First index with date >= p; predecessor is the entry before it.
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(p) })
	if i == 0 {
		return nil
	}
	return s.assignments[s.dates[i-1]]
}
