package attendance

import (
	"math"
	"sort"
)

// Stats is the tally of one student over a set of scheduled dates.
type Stats struct {
	Scheduled int `json:"scheduled"`
	Present   int `json:"present"`
	Late      int `json:"late"`
	Excused   int `json:"excused"`
	Absent    int `json:"absent"`
	Rate      int `json:"rate"`
}

// StudentStats pairs a roster entry with its tally.
type StudentStats struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Team  *int   `json:"team"`
	Stats Stats  `json:"stats"`
}

// CohortStats holds per-student tallies in roster order plus cohort totals.
// Totals.Rate is the rounded mean of the individual rates.
type CohortStats struct {
	Students []StudentStats `json:"students"`
	Totals   Stats          `json:"totals"`
}

// TeamStanding is the mean attendance rate of one team.
type TeamStanding struct {
	Team     int `json:"team"`
	Members  int `json:"members"`
	Rate     int `json:"rate"`
	Present  int `json:"present"`
	Late     int `json:"late"`
	Position int `json:"position"`
}

// ComputeStats tallies records dated on one of the scheduled dates. A
// scheduled date without a record counts toward the denominator only.
func ComputeStats(records []Record, scheduled []string) Stats {
	days := make(map[string]struct{}, len(scheduled))
	for _, d := range scheduled {
		days[d] = struct{}{}
	}

	st := Stats{Scheduled: len(scheduled)}
	for _, r := range records {
		if _, ok := days[r.Date]; !ok {
			continue
		}
		switch r.Status {
		case StatusPresent:
			st.Present++
		case StatusLate:
			st.Late++
		case StatusExcused:
			st.Excused++
		case StatusAbsent:
			st.Absent++
		}
	}
	st.Rate = percent(st.Present+st.Late, len(scheduled))
	return st
}

// ComputeCohortStats applies ComputeStats to every student of the roster.
func ComputeCohortStats(roster []Student, scheduled []string) CohortStats {
	out := CohortStats{
		Students: make([]StudentStats, 0, len(roster)),
		Totals:   Stats{Scheduled: len(scheduled)},
	}

	rateSum := 0
	for _, s := range roster {
		st := ComputeStats(s.Attendance, scheduled)
		out.Students = append(out.Students, StudentStats{
			Name:  s.Name,
			Email: s.Email,
			Team:  s.Team,
			Stats: st,
		})
		out.Totals.Present += st.Present
		out.Totals.Late += st.Late
		out.Totals.Excused += st.Excused
		out.Totals.Absent += st.Absent
		rateSum += st.Rate
	}
	if len(roster) > 0 {
		out.Totals.Rate = int(math.Round(float64(rateSum) / float64(len(roster))))
	}
	return out
}

// TeamStandings ranks teams by the mean rate of their members. Students
// without a team are left out.
func TeamStandings(roster []Student, scheduled []string) []TeamStanding {
	type acc struct {
		members, rateSum, present, late int
	}
	teams := make(map[int]*acc)
	for _, s := range roster {
		if s.Team == nil {
			continue
		}
		a, ok := teams[*s.Team]
		if !ok {
			a = &acc{}
			teams[*s.Team] = a
		}
		st := ComputeStats(s.Attendance, scheduled)
		a.members++
		a.rateSum += st.Rate
		a.present += st.Present
		a.late += st.Late
	}

	standings := make([]TeamStanding, 0, len(teams))
	for team, a := range teams {
		standings = append(standings, TeamStanding{
			Team:    team,
			Members: a.members,
			Rate:    int(math.Round(float64(a.rateSum) / float64(a.members))),
			Present: a.present,
			Late:    a.late,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Rate != standings[j].Rate {
			return standings[i].Rate > standings[j].Rate
		}
		return standings[i].Team < standings[j].Team
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(total)))
}
