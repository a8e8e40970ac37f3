package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/shax201/mock-test-v1-sub003/internal/cache"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

type testService struct {
	repo     repositories.Repository
	cache    cache.CacheService
	logger   *slog.Logger
	cacheTTL time.Duration
}

func NewTestService(repo repositories.Repository, cacheService cache.CacheService, logger *slog.Logger, cacheTTL time.Duration) TestService {
	return &testService{
		repo:     repo,
		cache:    cacheService,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

func testCacheKey(id uint) string        { return fmt.Sprintf("test:%d", id) }
func testDetailsCacheKey(id uint) string { return fmt.Sprintf("test:%d:details", id) }

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID uint) (*TestResponse, error) {
	if err := s.requireStaff(ctx, creatorID, 0, "create"); err != nil {
		return nil, err
	}

	if req.LinkedTestID != nil {
		// The linked group must exist before a module can join it.
		if _, err := s.repo.Test().GetByID(ctx, *req.LinkedTestID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, NewValidationError("linked_test_id", "linked test does not exist", *req.LinkedTestID)
			}
			return nil, fmt.Errorf("failed to check linked test: %w", err)
		}
	}

	test := &models.Test{
		Title:        req.Title,
		Description:  req.Description,
		ModuleType:   req.ModuleType,
		Status:       models.TestDraft,
		Duration:     req.Duration,
		LinkedTestID: req.LinkedTestID,
		CreatedBy:    creatorID,
		Version:      1,
	}

	if err := s.repo.Test().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	s.logger.Info("Test created",
		"test_id", test.ID, "module_type", test.ModuleType, "creator_id", creatorID)

	return &TestResponse{Test: test}, nil
}

func (s *testService) GetByID(ctx context.Context, id uint) (*TestResponse, error) {
	var cached models.Test
	if err := s.cache.Get(ctx, testCacheKey(id), &cached); err == nil {
		return &TestResponse{Test: &cached}, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Test cache read failed", "test_id", id, "error", err)
	}

	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if err := s.cache.Set(ctx, testCacheKey(id), test, s.cacheTTL); err != nil {
		s.logger.Warn("Test cache write failed", "test_id", id, "error", err)
	}

	return &TestResponse{Test: test}, nil
}

func (s *testService) GetByIDWithDetails(ctx context.Context, id uint) (*TestResponse, error) {
	var cached models.Test
	if err := s.cache.Get(ctx, testDetailsCacheKey(id), &cached); err == nil {
		return &TestResponse{Test: &cached}, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Test cache read failed", "test_id", id, "error", err)
	}

	test, err := s.repo.Test().GetByIDWithDetails(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if err := s.cache.Set(ctx, testDetailsCacheKey(id), test, s.cacheTTL); err != nil {
		s.logger.Warn("Test cache write failed", "test_id", id, "error", err)
	}

	return &TestResponse{Test: test}, nil
}

func (s *testService) Update(ctx context.Context, id uint, req *UpdateTestRequest, userID uint) (*TestResponse, error) {
	test, err := s.getEditableTest(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}
	if req.Duration != nil {
		test.Duration = *req.Duration
	}
	test.Version++

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}

	s.invalidateTest(ctx, id)

	return &TestResponse{Test: test}, nil
}

func (s *testService) Delete(ctx context.Context, id uint, userID uint) error {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get test: %w", err)
	}

	if err := s.requireStaff(ctx, userID, test.ID, "delete"); err != nil {
		return err
	}

	stats, err := s.repo.Session().GetStats(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check sessions: %w", err)
	}
	if stats.TotalSessions > 0 {
		return ErrTestHasSessions
	}

	if err := s.repo.Test().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.invalidateTest(ctx, id)
	s.logger.Info("Test deleted", "test_id", id, "user_id", userID)

	return nil
}

func (s *testService) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, total, nil
}

// Publish moves a draft test live. Publishing requires at least one question
// and, for auto-scored modules, a band table.
func (s *testService) Publish(ctx context.Context, id uint, userID uint) error {
	test, err := s.getEditableTest(ctx, id, userID, "publish")
	if err != nil {
		return err
	}

	questions, err := s.repo.Question().GetByTest(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}
	if len(questions) == 0 {
		return NewBusinessRuleError("publish_requires_questions",
			"test must have at least one question before publishing",
			map[string]interface{}{"test_id": id})
	}

	if test.ModuleType == models.ModuleListening || test.ModuleType == models.ModuleReading {
		bandTable, err := s.repo.BandScore().GetByTest(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get band score ranges: %w", err)
		}
		if len(bandTable) == 0 {
			return NewBusinessRuleError("publish_requires_band_table",
				"auto-scored test must have a band score table before publishing",
				map[string]interface{}{"test_id": id, "module_type": test.ModuleType})
		}
	}

	test.Status = models.TestPublished
	test.Version++

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return fmt.Errorf("failed to publish test: %w", err)
	}

	s.invalidateTest(ctx, id)
	s.logger.Info("Test published", "test_id", id, "user_id", userID)

	return nil
}

func (s *testService) Archive(ctx context.Context, id uint, userID uint) error {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get test: %w", err)
	}

	if err := s.requireStaff(ctx, userID, test.ID, "archive"); err != nil {
		return err
	}

	if test.Status == models.TestArchived {
		return nil
	}

	test.Status = models.TestArchived
	test.Version++

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return fmt.Errorf("failed to archive test: %w", err)
	}

	s.invalidateTest(ctx, id)
	s.logger.Info("Test archived", "test_id", id, "user_id", userID)

	return nil
}

func (s *testService) AddQuestions(ctx context.Context, testID uint, reqs []CreateQuestionRequest, userID uint) ([]*models.Question, error) {
	if _, err := s.getEditableTest(ctx, testID, userID, "add questions"); err != nil {
		return nil, err
	}

	questions := make([]*models.Question, 0, len(reqs))
	for i, req := range reqs {
		if !req.Type.Valid() {
			return nil, NewValidationError(fmt.Sprintf("questions[%d].type", i), "unknown question type", req.Type)
		}

		points := req.Points
		if points == 0 {
			points = 1
		}

		question := &models.Question{
			TestID:         testID,
			Part:           req.Part,
			QuestionNumber: req.QuestionNumber,
			Type:           req.Type,
			Points:         points,
			GroupID:        req.GroupID,
			FieldKey:       req.FieldKey,
		}

		if req.Content != nil {
			content, err := json.Marshal(req.Content)
			if err != nil {
				return nil, NewValidationError(fmt.Sprintf("questions[%d].content", i), "content is not serializable", nil)
			}
			question.Content = datatypes.JSON(content)
		}

		if req.CorrectAnswers != nil {
			answers, err := json.Marshal(req.CorrectAnswers)
			if err != nil {
				return nil, NewValidationError(fmt.Sprintf("questions[%d].correct_answers", i), "correct answers are not serializable", nil)
			}
			question.CorrectAnswers = datatypes.JSON(answers)
		}

		questions = append(questions, question)
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Question().CreateBatch(ctx, questions)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create questions: %w", err)
	}

	s.invalidateTest(ctx, testID)
	s.logger.Info("Questions added", "test_id", testID, "count", len(questions))

	return questions, nil
}

// ReplaceBandRanges swaps the whole lookup table atomically. Partial tables
// are rejected up front: every band value must land on a half step.
func (s *testService) ReplaceBandRanges(ctx context.Context, testID uint, reqs []BandRangeRequest, userID uint) error {
	if _, err := s.getEditableTest(ctx, testID, userID, "replace band ranges"); err != nil {
		return err
	}

	if len(reqs) == 0 {
		return NewValidationError("band_ranges", "band score table cannot be empty", nil)
	}

	seen := make(map[int]bool, len(reqs))
	ranges := make([]models.BandScoreRange, 0, len(reqs))
	for i, req := range reqs {
		if seen[req.MinScore] {
			return NewValidationError(fmt.Sprintf("band_ranges[%d].min_score", i), "duplicate min_score", req.MinScore)
		}
		seen[req.MinScore] = true
		ranges = append(ranges, models.BandScoreRange{
			TestID:   testID,
			MinScore: req.MinScore,
			Band:     req.Band,
		})
	}

	if err := s.repo.BandScore().ReplaceForTest(ctx, testID, ranges); err != nil {
		return fmt.Errorf("failed to replace band score ranges: %w", err)
	}

	s.invalidateTest(ctx, testID)
	s.logger.Info("Band score table replaced", "test_id", testID, "rows", len(ranges))

	return nil
}

// ===== HELPERS =====

func (s *testService) requireStaff(ctx context.Context, userID, resourceID uint, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleStudent {
		return NewPermissionError(userID, resourceID, "test", action, "requires instructor or admin role")
	}
	return nil
}

func (s *testService) getEditableTest(ctx context.Context, id, userID uint, action string) (*models.Test, error) {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if err := s.requireStaff(ctx, userID, test.ID, action); err != nil {
		return nil, err
	}

	if test.Status == models.TestArchived {
		return nil, ErrTestNotEditable
	}

	return test, nil
}

func (s *testService) invalidateTest(ctx context.Context, id uint) {
	if err := s.cache.DeletePattern(ctx, fmt.Sprintf("test:%d*", id)); err != nil {
		s.logger.Warn("Test cache invalidation failed", "test_id", id, "error", err)
	}
}
