// Package report exports learner progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LikhithSP/Knowledge-Tree/internal/orchestrator"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
)

const summarySheet = "Summary"

var topicHeader = []any{"Topic", "Level", "Status", "Score", "Completed At"}

// Write renders a workbook with a Summary sheet followed by one sheet per
// roadmap listing every topic with its level, status and completion data.
func Write(w io.Writer, userID string, roadmaps []orchestrator.RoadmapProgress, summary progress.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	rows := [][]any{
		{"User", userID},
		{"Topics completed", summary.TopicsCompleted},
		{"Quizzes completed", summary.QuizzesCompleted},
		{"Hours completed", summary.HoursCompleted},
		{"Total topics", summary.TotalTopics},
		{},
		{"Roadmap", "Completed", "Total"},
	}
	for _, rp := range roadmaps {
		rows = append(rows, []any{rp.View.Roadmap.Title, rp.View.Completed, rp.View.Total})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A5", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, "A7", "C7", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, rp := range roadmaps {
		name := SheetName(rp.View.Roadmap.Title, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}

		rows := [][]any{topicHeader}
		for _, n := range rp.View.Nodes {
			score, completedAt := "", ""
			if rec, ok := rp.Records[n.ID]; ok {
				if rec.QuizScore != nil {
					score = fmt.Sprint(*rec.QuizScore)
				}
				completedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []any{n.Title, n.Level, string(n.Status), score, completedAt})
		}
		if err := writeRows(f, name, rows); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", "E1", bold); err != nil {
			return fmt.Errorf("style sheet %q: %w", name, err)
		}
		if err := f.SetColWidth(name, "A", "A", 40); err != nil {
			return fmt.Errorf("size sheet %q: %w", name, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// SheetName turns a roadmap title into a unique, valid worksheet name:
// at most 31 characters with none of : \ / ? * [ ]. Excel compares sheet
// names case-insensitively, so used is keyed by lower-cased name.
func SheetName(title string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if clean == "" {
		clean = "Roadmap"
	}
	clean = truncateRunes(clean, 31)

	name := clean
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(clean, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
