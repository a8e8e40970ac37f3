package postgres

import (
	"context"
	"time"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.TestSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDWithDetails(ctx context.Context, id uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).
		Preload("Test").
		Preload("Student").
		First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateVersioned is the only write path for racing mutators (auto-save,
// submit, manual evaluation): the UPDATE is guarded by the version the caller
// read, so the last writer only wins if nothing changed in between.
func (s *SessionPostgreSQL) UpdateVersioned(ctx context.Context, session *models.TestSession, expectedVersion int) error {
	now := time.Now().UTC()
	session.Version = expectedVersion + 1
	session.UpdatedAt = now
	res := s.db.WithContext(ctx).
		Model(&models.TestSession{}).
		Where("id = ? AND version = ?", session.ID, expectedVersion).
		Updates(versionedColumns(session, now))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row vanished or another writer bumped the version.
		var exists int64
		if err := s.db.WithContext(ctx).Model(&models.TestSession{}).
			Where("id = ?", session.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		return repositories.ErrVersionConflict
	}
	return nil
}

// versionedColumns is the full set of columns a guarded write may touch.
// Identity and window columns (test_id, student_id, started_at, end_time)
// never change after Create and stay out of the map.
func versionedColumns(session *models.TestSession, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"answers":      session.Answers,
		"status":       session.Status,
		"end_reason":   session.EndReason,
		"score":        session.Score,
		"band":         session.Band,
		"overall_band": session.OverallBand,
		"is_completed": session.IsCompleted,
		"completed_at": session.CompletedAt,
		"evaluated_by": session.EvaluatedBy,
		"result":       session.Result,
		"version":      session.Version,
		"updated_at":   now,
	}
}

// UpdateOverallBand touches only the overall_band column. The recompute runs
// against sessions read before it writes, so it must not overwrite anything a
// versioned writer may have changed in between.
func (s *SessionPostgreSQL) UpdateOverallBand(ctx context.Context, sessionID uint, overallBand float64) error {
	res := s.db.WithContext(ctx).
		Model(&models.TestSession{}).
		Where("id = ?", sessionID).
		Update("overall_band", overallBand)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SessionPostgreSQL) GetCurrentSession(ctx context.Context, testID, studentID uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).
		Where("test_id = ? AND student_id = ? AND status = ?", testID, studentID, models.SessionInProgress).
		Order("created_at desc").
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByStudentAndLinkedTest(ctx context.Context, studentID, linkedTestID uint) ([]*models.TestSession, error) {
	var sessions []*models.TestSession
	if err := s.db.WithContext(ctx).
		Joins("JOIN tests ON tests.id = test_sessions.test_id").
		Where("test_sessions.student_id = ? AND (tests.linked_test_id = ? OR tests.id = ?)",
			studentID, linkedTestID, linkedTestID).
		Preload("Test").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.TestSession, int64, error) {
	var sessions []*models.TestSession
	var total int64

	query := s.db.WithContext(ctx).Model(&models.TestSession{})
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.Limit, filters.Offset, filters.SortBy, filters.SortOrder,
		map[string]bool{"created_at": true, "completed_at": true, "band": true})

	if err := query.Preload("Test").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// GetExpired finds in-progress sessions whose submission window closed before
// cutoff, for server-side timeout handling.
func (s *SessionPostgreSQL) GetExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.TestSession, error) {
	var sessions []*models.TestSession
	query := s.db.WithContext(ctx).
		Where("status = ? AND end_time IS NOT NULL AND end_time < ?", models.SessionInProgress, cutoff).
		Order("end_time asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) GetStats(ctx context.Context, testID uint) (*repositories.SessionStats, error) {
	stats := &repositories.SessionStats{
		StatusBreakdown: map[models.SessionStatus]int{},
	}

	var sessions []*models.TestSession
	if err := s.db.WithContext(ctx).Where("test_id = ?", testID).Find(&sessions).Error; err != nil {
		return nil, err
	}

	var bandSum, scoreSum float64
	var bandCount, scoreCount int
	for _, session := range sessions {
		stats.TotalSessions++
		stats.StatusBreakdown[session.Status]++
		if session.IsCompleted {
			stats.CompletedSessions++
		}
		if session.Band != nil {
			bandSum += *session.Band
			bandCount++
		}
		if session.Score != nil {
			scoreSum += float64(*session.Score)
			scoreCount++
		}
	}
	if bandCount > 0 {
		stats.AverageBand = bandSum / float64(bandCount)
	}
	if scoreCount > 0 {
		stats.AverageScore = scoreSum / float64(scoreCount)
	}

	return stats, nil
}

func (s *SessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
