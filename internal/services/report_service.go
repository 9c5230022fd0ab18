package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	reportSheetApplications = "Applications"
	reportSheetSummary      = "Summary"
)

type ReportService struct {
	DB           *gorm.DB
	Applications *ApplicationService
}

func NewReportService(db *gorm.DB, apps *ApplicationService) *ReportService {
	return &ReportService{DB: db, Applications: apps}
}

type matchKey struct{ candidateID, jobID uint }

// ApplicationsWorkbook exports applications, optionally for one job, as xlsx bytes.
func (s *ReportService) ApplicationsWorkbook(ctx context.Context, jobID uint) ([]byte, error) {
	if jobID != 0 {
		var job models.Job
		if err := s.DB.WithContext(ctx).Select("id").First(&job, jobID).Error; err != nil {
			return nil, dbError(err, "job")
		}
	}
	apps, err := s.Applications.List(ctx, dtos.ApplicationFilter{JobID: jobID})
	if err != nil {
		return nil, err
	}

	var matches []models.CandidateJobMatch
	q := s.DB.WithContext(ctx).Model(&models.CandidateJobMatch{})
	if jobID != 0 {
		q = q.Where("job_id = ?", jobID)
	}
	if err := q.Find(&matches).Error; err != nil {
		return nil, err
	}
	scores := make(map[matchKey]float64, len(matches))
	for _, m := range matches {
		scores[matchKey{m.CandidateID, m.JobID}] = m.Score
	}

	buf, err := buildApplicationsWorkbook(apps, scores, time.Now())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildApplicationsWorkbook renders one row per application plus a status summary.
func buildApplicationsWorkbook(apps []models.Application, scores map[matchKey]float64, generated time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheetApplications); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(reportSheetSummary); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	sheet := reportSheetApplications
	headers := []string{"Application ID", "Candidate", "Email", "Job", "Status", "Match Score", "Applied", "Updated", "Notes"}
	widths := []float64{14, 25, 30, 30, 12, 12, 18, 18, 50}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for i, a := range apps {
		row := i + 2
		candidate, email, job := "", "", ""
		if a.Candidate != nil {
			candidate, email = a.Candidate.FullName, a.Candidate.Email
		}
		if a.Job != nil {
			job = a.Job.Title
		}
		var score any = ""
		if v, ok := scores[matchKey{a.CandidateID, a.JobID}]; ok {
			score = v
		}
		values := []any{a.ID, candidate, email, job, a.Status, score,
			a.AppliedAt.Format("2006-01-02 15:04"), a.UpdatedAt.Format("2006-01-02 15:04"), a.Notes}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		counts[a.Status]++
	}

	if len(apps) > 0 {
		ref := fmt.Sprintf("A1:%s", lastCell(len(headers), len(apps)+1))
		if err := f.AutoFilter(sheet, ref, []excelize.AutoFilterOptions{}); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	sum := reportSheetSummary
	rows := [][]any{
		{"Generated", generated.Format("2006-01-02 15:04:05")},
		{"Total applications", len(apps)},
		{},
		{"Status", "Count"},
	}
	for _, st := range []string{models.ApplicationApplied, models.ApplicationScreening, models.ApplicationInterview,
		models.ApplicationOffer, models.ApplicationHired, models.ApplicationRejected} {
		rows = append(rows, []any{st, counts[st]})
	}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sum, cell, &r); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sum, "A4", "B4", headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sum, "A", "B", 22); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

func lastCell(col, row int) string {
	c, _ := excelize.CoordinatesToCellName(col, row)
	return c
}
