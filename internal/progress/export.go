package progress

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-comply/internal/quiz"
)

const (
	attemptsSheet  = "Attempts"
	questionsSheet = "Questions"
)

// ExportReports writes an XLSX audit workbook of attempt reports: one row per
// attempt on the Attempts sheet and one row per question on Questions.
// Reports are ordered by submission time.
func ExportReports(w io.Writer, reports []quiz.AttemptReport) error {
	sorted := append([]quiz.AttemptReport(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(questionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := f.SetSheetRow(attemptsSheet, "A1", &[]any{
		"Submitted", "Lesson", "Cue", "Score", "Max", "Percentage", "Passed",
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetSheetRow(questionsSheet, "A1", &[]any{
		"Submitted", "Lesson", "Cue", "Question", "Selected", "Expected", "Correct",
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	qRow := 2
	for i, r := range sorted {
		submitted := r.SubmittedAt.UTC().Format(time.RFC3339)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(attemptsSheet, cell, &[]any{
			submitted, r.LessonID, r.CueID, r.Score, r.MaxScore, r.Percentage, r.Passed,
		}); err != nil {
			return fmt.Errorf("write attempt row: %w", err)
		}

		for _, d := range r.Details {
			cell, err := excelize.CoordinatesToCellName(1, qRow)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(questionsSheet, cell, &[]any{
				submitted, r.LessonID, r.CueID, d.Prompt, d.Selected, d.Expected, d.Correct,
			}); err != nil {
				return fmt.Errorf("write question row: %w", err)
			}
			qRow++
		}
	}

	if err := f.SetColWidth(attemptsSheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(questionsSheet, "D", "D", 48); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
