package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

var resultExportHeaders = []string{
	"Session ID", "Student ID", "Student Name", "Status", "Started At",
	"Completed At", "End Reason", "Raw Score", "Band", "Overall Band",
}

func (s *exportService) ExportTestResultsToExcel(ctx context.Context, testID uint, userID uint) ([]byte, error) {
	sessions, err := s.loadExportRows(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range resultExportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, session := range sessions {
		for colIndex, value := range exportRow(session) {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported test results to Excel", "test_id", testID, "rows", len(sessions))

	return buf.Bytes(), nil
}

func (s *exportService) ExportTestResultsToCSV(ctx context.Context, testID uint, userID uint) ([]byte, error) {
	sessions, err := s.loadExportRows(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(resultExportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, session := range sessions {
		record := make([]string, 0, len(resultExportHeaders))
		for _, value := range exportRow(session) {
			record = append(record, fmt.Sprintf("%v", value))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.logger.Info("Exported test results to CSV", "test_id", testID, "rows", len(sessions))

	return buf.Bytes(), nil
}

func (s *exportService) loadExportRows(ctx context.Context, testID, userID uint) ([]*models.TestSession, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleStudent {
		return nil, NewPermissionError(userID, testID, "test", "export_results", "requires instructor or admin role")
	}

	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	completed := models.SessionCompleted
	sessions, _, err := s.repo.Session().List(ctx, repositories.SessionFilters{
		TestID:    &testID,
		Status:    &completed,
		SortBy:    "completed_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	evaluated := models.SessionEvaluated
	evaluatedSessions, _, err := s.repo.Session().List(ctx, repositories.SessionFilters{
		TestID:    &testID,
		Status:    &evaluated,
		SortBy:    "completed_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluated sessions: %w", err)
	}

	return append(sessions, evaluatedSessions...), nil
}

func exportRow(session *models.TestSession) []interface{} {
	row := []interface{}{
		session.ID,
		session.StudentID,
		session.Student.Name,
		string(session.Status),
		session.StartedAt.Format("2006-01-02 15:04:05"),
	}

	if session.CompletedAt != nil {
		row = append(row, session.CompletedAt.Format("2006-01-02 15:04:05"))
	} else {
		row = append(row, "")
	}

	if session.EndReason != nil {
		row = append(row, string(*session.EndReason))
	} else {
		row = append(row, "")
	}

	if session.Score != nil {
		row = append(row, *session.Score)
	} else {
		row = append(row, "")
	}

	row = append(row, formatBand(session.Band))
	row = append(row, formatBand(session.OverallBand))

	return row
}

func formatBand(band *float64) string {
	if band == nil {
		return ""
	}
	return strconv.FormatFloat(*band, 'f', 1, 64)
}
