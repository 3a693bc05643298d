package attendance

import "fmt"

// UnknownSubject groups entries whose class or subject cannot be resolved.
const UnknownSubject = "Unknown"

// Tier is the qualitative status of a subject's attendance.
type Tier string

const (
	TierCritical  Tier = "critical"
	TierWarning   Tier = "warning"
	TierExcellent Tier = "excellent"
)

const (
	criticalBelow = 50
	warningBelow  = 75

	// lookahead is the number of upcoming classes assumed when computing
	// how many must be attended to get back to 75%.
	lookahead = 10
)

type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Percentage int `json:"percentage"`
}

// add counts status. Statuses other than present, absent and late are ignored so that
// Total is always Present+Absent+Late.
func (s *Stats) add(status Status) {
	if !status.Valid() {
		return
	}
	s.Total++
	switch status {
	case StatusPresent:
		s.Present++
	case StatusAbsent:
		s.Absent++
	case StatusLate:
		s.Late++
	}
}

type SubjectSummary struct {
	Subject string `json:"subject"`
	Stats
	Tier    Tier   `json:"status"`
	Message string `json:"message"`
}

// Report is a user's overall attendance and its per-subject breakdown.
type Report struct {
	Stats    Stats            `json:"stats"`
	Subjects []SubjectSummary `json:"subjects"`
}

// Percentage returns 100*present/total rounded half up, or 0 when total is 0.
func Percentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*present + total) / (2 * total)
}

func TierOf(percentage int) Tier {
	switch {
	case percentage < criticalBelow:
		return TierCritical
	case percentage < warningBelow:
		return TierWarning
	default:
		return TierExcellent
	}
}

// CanMiss is floor(total * 0.25).
func CanMiss(total int) int {
	return total / 4
}

// ClassesNeeded is ceil(0.75*(total+lookahead) - present), never negative.
func ClassesNeeded(present, total int) int {
	n := 3*(total+lookahead) - 4*present
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// Message returns the advice shown next to a subject of the given tier.
func Message(tier Tier, present, total int) string {
	if tier == TierExcellent {
		return fmt.Sprintf("Great attendance! You can miss %d more classes and still maintain 75%%.", CanMiss(total))
	}
	return fmt.Sprintf("You need to attend %d more classes to reach 75%%.", ClassesNeeded(present, total))
}

// Overall counts every entry by status.
func Overall(entries []Entry) Stats {
	var stats Stats
	for _, e := range entries {
		stats.add(e.Status)
	}
	stats.Percentage = Percentage(stats.Present, stats.Total)
	return stats
}

// BySubject groups entries by subject name, in order of first appearance.
func BySubject(entries []Entry) []SubjectSummary {
	summaries := make([]SubjectSummary, 0)
	index := make(map[string]int)
	for _, e := range entries {
		if !e.Status.Valid() {
			continue
		}
		name := e.SubjectName()
		i, ok := index[name]
		if !ok {
			i = len(summaries)
			index[name] = i
			summaries = append(summaries, SubjectSummary{Subject: name})
		}
		summaries[i].add(e.Status)
	}

	for i := range summaries {
		s := &summaries[i]
		s.Percentage = Percentage(s.Present, s.Total)
		s.Tier = TierOf(s.Percentage)
		s.Message = Message(s.Tier, s.Present, s.Total)
	}
	return summaries
}

// Aggregate builds the Report of entries.
func Aggregate(entries []Entry) Report {
	return Report{
		Stats:    Overall(entries),
		Subjects: BySubject(entries),
	}
}

// LowSubjects returns the subjects of the report below the excellent tier.
func (r Report) LowSubjects() []SubjectSummary {
	low := make([]SubjectSummary, 0)
	for _, s := range r.Subjects {
		if s.Tier != TierExcellent {
			low = append(low, s)
		}
	}
	return low
}
