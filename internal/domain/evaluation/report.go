package evaluation

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// RenderReport writes the employee's dashboard for the period as a PDF.
func (s *Service) RenderReport(ctx context.Context, employeeID, periodID string, w io.Writer) error {
	res, err := s.Resolve(ctx, employeeID, periodID)
	if err != nil {
		return err
	}
	dashboard, err := s.dashboardFor(ctx, res, employeeID)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Evaluation")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", employeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", res.Period.Name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Work items: %d", len(res.Assignments)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	for _, header := range []string{"Stage", "Status", "Completed", "Score", "Grade"} {
		pdf.CellFormat(36, 8, header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 12)
	writeStageRow(pdf, "Self", dashboard.Self.StageSummary, 1)
	writeStageRow(pdf, "Primary", dashboard.Primary.StageSummary, 1)
	writeStageRow(pdf, "Secondary", dashboard.Secondary.StageSummary, len(dashboard.Secondary.Evaluators))

	if len(dashboard.Secondary.Evaluators) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Secondary evaluators")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		for _, ev := range dashboard.Secondary.Evaluators {
			pdf.Cell(0, 7, fmt.Sprintf("%s: %s (%d/%d)", ev.EvaluatorID, ev.Status, ev.CompletedCount, ev.AssignedCount))
			pdf.Ln(7)
		}
	}

	return pdf.Output(w)
}

func writeStageRow(pdf *gofpdf.Fpdf, label string, summary StageSummary, evaluators int) {
	score := "-"
	if summary.TotalScore != nil {
		score = strconv.Itoa(*summary.TotalScore)
	}
	grade := "-"
	if summary.Grade != nil {
		grade = *summary.Grade
	}
	completed := completionRatio(summary, evaluators)
	for _, value := range []string{label, string(summary.Status), completed, score, grade} {
		pdf.CellFormat(36, 8, value, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

// completionRatio prints completions over the records the stage expects. A
// secondary stage expects one record per assignment from each evaluator.
func completionRatio(summary StageSummary, evaluators int) string {
	expected := summary.TotalAssignedCount
	if evaluators > 1 {
		expected *= evaluators
	}
	return fmt.Sprintf("%d/%d", summary.CompletedCount, expected)
}
