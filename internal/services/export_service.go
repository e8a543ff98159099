package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quizforge/quiz-engine/internal/repositories"
	"github.com/xuri/excelize/v2"
)

// ExportService renders attempt history and quiz statistics as Excel
// workbooks for instructors.
type ExportService interface {
	ExportQuizResults(ctx context.Context, quizID string) ([]byte, error)
	ExportStudentHistory(ctx context.Context, quizID, studentID string) ([]byte, error)
}

type exportService struct {
	repo   repositories.AttemptRepository
	logger *slog.Logger
}

func NewExportService(repo repositories.AttemptRepository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) ExportQuizResults(ctx context.Context, quizID string) ([]byte, error) {
	records, _, err := s.repo.List(ctx, repositories.AttemptFilters{QuizID: &quizID})
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz attempts: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Student ID", "Submitted At", "Score", "Total Points", "Percentage",
		"Result", "Correct", "Incorrect", "Unanswered", "Time Spent (minutes)", "End Reason",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, record := range records {
		row := []interface{}{
			record.StudentID,
			record.SubmittedAt.Format("2006-01-02 15:04:05"),
			record.Score,
			record.TotalPoints,
			record.Percentage,
		}

		if record.Passed {
			row = append(row, "Pass")
		} else {
			row = append(row, "Fail")
		}

		row = append(row,
			record.Correct,
			record.Incorrect,
			record.Unanswered,
			record.TimeSpentSeconds/60,
			record.EndReason,
		)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	// Summary sheet with aggregate statistics
	stats, err := s.repo.GetStats(ctx, quizID)
	if err != nil {
		s.logger.Warn("failed to load quiz statistics, exporting results only",
			"quiz_id", quizID,
			"error", err)
	} else {
		if err := s.writeStatsSheet(f, stats); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported quiz results",
		"quiz_id", quizID,
		"attempts", len(records))

	return buf.Bytes(), nil
}

func (s *exportService) ExportStudentHistory(ctx context.Context, quizID, studentID string) ([]byte, error) {
	records, err := s.repo.GetByQuizAndStudent(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt history: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "History"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Attempt", "Submitted At", "Score", "Percentage", "Result", "Time Spent (minutes)", "End Reason",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, record := range records {
		row := []interface{}{
			rowIndex + 1,
			record.SubmittedAt.Format("2006-01-02 15:04:05"),
			record.Score,
			record.Percentage,
		}

		if record.Passed {
			row = append(row, "Pass")
		} else {
			row = append(row, "Fail")
		}

		row = append(row, record.TimeSpentSeconds/60, record.EndReason)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *exportService) writeStatsSheet(f *excelize.File, stats *repositories.AttemptStats) error {
	sheetName := "Summary"
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Total Attempts", stats.TotalAttempts},
		{"Unique Students", stats.UniqueStudents},
		{"Average Score", stats.AverageScore},
		{"Pass Rate (%)", stats.PassRate},
	}
	for i, row := range rows {
		for j, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	return nil
}
