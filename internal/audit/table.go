// Package audit renders check-mode output: a spinner while one worklist
// entry drains, then a table of the records it produced.
package audit

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/amishk599/harvester/internal/model"
)

const maxTitleWidth = 48

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	oddRowStyle = cellStyle.
			Foreground(lipgloss.Color("252"))

	evenRowStyle = cellStyle.
			Foreground(lipgloss.Color("245"))

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Padding(1, 0, 0, 1).
			Foreground(lipgloss.Color("245"))

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

var columns = []string{"Title", "Company", "Location", "Industry", "Salary", "Flags"}

// RenderTable lays out records as a bordered table followed by the stage
// counters of the drain that produced them.
func RenderTable(records []*model.JobRecord, stats model.SourceSnapshot) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row(rec))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			switch {
			case r == table.HeaderRow:
				return headerStyle
			case r%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		})

	var b strings.Builder
	if len(records) == 0 {
		b.WriteString(summaryStyle.Render("No records reached persistence."))
	} else {
		b.WriteString(t.String())
	}
	b.WriteString("\n")
	b.WriteString(summaryStyle.Render(summary(stats)))
	b.WriteString("\n")
	return b.String()
}

func row(rec *model.JobRecord) []string {
	return []string{
		truncate(rec.Title, maxTitleWidth),
		rec.CompanyName,
		location(rec),
		string(rec.Industry),
		salary(rec),
		flags(rec),
	}
}

func location(rec *model.JobRecord) string {
	switch {
	case rec.City != "" && rec.Province != "":
		return rec.City + ", " + rec.Province
	case rec.Province != "":
		return rec.Province
	default:
		return rec.City
	}
}

func salary(rec *model.JobRecord) string {
	unit := ""
	if rec.SalaryPeriod == model.SalaryHourly {
		unit = "/hr"
	}
	switch {
	case rec.SalaryMin != nil && rec.SalaryMax != nil && *rec.SalaryMin != *rec.SalaryMax:
		return fmt.Sprintf("$%d–%d%s", *rec.SalaryMin, *rec.SalaryMax, unit)
	case rec.SalaryMin != nil:
		return fmt.Sprintf("$%d%s", *rec.SalaryMin, unit)
	case rec.SalaryMax != nil:
		return fmt.Sprintf("≤$%d%s", *rec.SalaryMax, unit)
	default:
		return ""
	}
}

func flags(rec *model.JobRecord) string {
	var out []string
	if rec.IsRemote {
		out = append(out, "remote")
	}
	if rec.IsFlyInFlyOut {
		out = append(out, "fifo")
	}
	if len(out) == 0 {
		return ""
	}
	return flagStyle.Render(strings.Join(out, " "))
}

func summary(s model.SourceSnapshot) string {
	return fmt.Sprintf("found %d · rejected %d · duplicates %d · kept %d · failed pages %d",
		s.Found, s.Rejected, s.Duplicates, s.Persisted, s.FailedPages)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
