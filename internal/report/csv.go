package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cohort/internal/attendance"
	"cohort/internal/metrics"
	"cohort/internal/schedule"
)

const legend = "\n\nLegend:\n✓ = Present\nL = Late\nE = Excused\nX = Absent\n(blank) = Not marked"

// Source supplies the roster and calendar for an export.
type Source interface {
	Roster(ctx context.Context) ([]attendance.Student, error)
	ResolveRange(r schedule.Range) schedule.Range
	Calendar() *schedule.Config
}

// Export resolves the default range and renders the report for the roster
// held by src.
func Export(ctx context.Context, src Source, r schedule.Range) (string, error) {
	r = src.ResolveRange(r)
	if !schedule.ValidDate(r.From) || !schedule.ValidDate(r.To) {
		return "", fmt.Errorf("%w: malformed date", schedule.ErrInvalidDateRange)
	}
	roster, err := src.Roster(ctx)
	if err != nil {
		return "", err
	}
	out, err := Format(roster, r, src.Calendar())
	if err != nil {
		return "", err
	}
	metrics.ReportExportsTotal.Inc()
	return out, nil
}

// Format renders the attendance grid of roster over the weekdays of r as
// comma separated text. Rates only count days the calendar schedules.
func Format(roster []attendance.Student, r schedule.Range, cfg *schedule.Config) (string, error) {
	dates, err := schedule.WeekdayDates(r)
	if err != nil {
		return "", err
	}
	cohort := attendance.ComputeCohortStats(roster, cfg.ScheduledDates(dates))

	lines := make([]string, 0, len(roster)+3)

	header := []string{"Student Name", "Email", "Team"}
	for _, d := range dates {
		header = append(header, columnLabel(d))
	}
	header = append(header, "Present", "Late", "Excused", "Absent", "Rate %")
	lines = append(lines, joinRow(header))

	for i, st := range roster {
		row := []string{st.Name, st.Email, teamCell(st.Team)}
		for _, d := range dates {
			code := ""
			if rec := st.RecordFor(d); rec != nil {
				code = rec.Status.ReportCode()
			}
			row = append(row, code)
		}
		row = append(row, countCells(cohort.Students[i].Stats)...)
		lines = append(lines, joinRow(row))
	}

	lines = append(lines, "")
	totals := []string{"TOTALS", "", ""}
	for range dates {
		totals = append(totals, "")
	}
	totals = append(totals, countCells(cohort.Totals)...)
	lines = append(lines, joinRow(totals))

	return strings.Join(lines, "\n") + legend, nil
}

// Filename names an export generated on date (YYYY-MM-DD).
func Filename(date string) string {
	return "attendance_report_" + date + ".csv"
}

// Escape quotes a cell that contains a comma, a double quote or a newline,
// doubling any quotes inside it.
func Escape(cell string) string {
	if !strings.ContainsAny(cell, ",\"\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

func joinRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = Escape(c)
	}
	return strings.Join(escaped, ",")
}

func columnLabel(date string) string {
	t, err := time.Parse(schedule.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Mon") + " " + date
}

func teamCell(team *int) string {
	if team == nil {
		return "-"
	}
	return strconv.Itoa(*team)
}

func countCells(st attendance.Stats) []string {
	return []string{
		strconv.Itoa(st.Present),
		strconv.Itoa(st.Late),
		strconv.Itoa(st.Excused),
		strconv.Itoa(st.Absent),
		strconv.Itoa(st.Rate) + "%",
	}
}
