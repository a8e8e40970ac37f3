package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shax201/mock-test-v1-sub003/internal/events"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"github.com/shax201/mock-test-v1-sub003/internal/scoring"
)

type scoringService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewScoringService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher) ScoringService {
	return &scoringService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
	}
}

func (s *scoringService) ScoreSubmission(
	moduleType models.ModuleType,
	rawAnswers models.AnswerSheet,
	questions []models.Question,
	bandTable []models.BandScoreRange,
) *models.DetailedScoreResult {
	return scoring.ScoreSubmission(moduleType, rawAnswers, questions, bandTable)
}

// FinalizeSession scores a completed session in place. Listening/reading get
// score+band from the auto-scorer; writing/speaking are marked completed and
// wait for manual evaluation. Missing reference data produces a zero result
// so the UI can render a pending state.
func (s *scoringService) FinalizeSession(ctx context.Context, session *models.TestSession) (*models.DetailedScoreResult, error) {
	test, err := s.repo.Test().GetByID(ctx, session.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.ModuleType == models.ModuleWriting || test.ModuleType == models.ModuleSpeaking {
		// Band stays nil until an instructor evaluates.
		return &models.DetailedScoreResult{ModuleType: test.ModuleType}, nil
	}

	questions, err := s.repo.Question().GetByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	bandTable, err := s.repo.BandScore().GetByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get band score ranges: %w", err)
	}

	var rawAnswers models.AnswerSheet
	if len(session.Answers) > 0 {
		if err := json.Unmarshal(session.Answers, &rawAnswers); err != nil {
			s.logger.Warn("Session answers undecodable, scoring as empty",
				"session_id", session.ID, "error", err)
		}
	}

	result := scoring.ScoreSubmission(test.ModuleType, rawAnswers, questions, bandTable)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score result: %w", err)
	}

	score := result.CorrectAnswers
	band := result.BandScore
	session.Score = &score
	session.Band = &band
	session.Result = resultJSON

	s.logger.Info("Session scored",
		"session_id", session.ID,
		"module_type", test.ModuleType,
		"raw_score", score,
		"band", band)

	return result, nil
}

// RecomputeOverallBand rebuilds the combined band for one student's linked
// exam. The strict rule gates the persisted overall_band; the lenient value
// is returned for list views but never stored.
func (s *scoringService) RecomputeOverallBand(ctx context.Context, studentID, linkedTestID uint) (*models.OverallResult, error) {
	sessions, err := s.repo.Session().GetByStudentAndLinkedTest(ctx, studentID, linkedTestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked sessions: %w", err)
	}

	result := &models.OverallResult{
		LinkedTestID: linkedTestID,
		StudentID:    studentID,
		ModuleBands:  map[models.ModuleType]*float64{},
	}

	bands := scoring.ModuleBands{}
	for _, session := range sessions {
		if session.Band == nil {
			continue
		}
		moduleType := session.Test.ModuleType
		result.ModuleBands[moduleType] = session.Band
		switch moduleType {
		case models.ModuleListening:
			bands.Listening = session.Band
		case models.ModuleReading:
			bands.Reading = session.Band
		case models.ModuleWriting:
			bands.Writing = session.Band
		}
	}

	result.OverallBand = scoring.StrictOverallBand(bands)
	result.LenientBand = scoring.LenientOverallBand(bands)

	if result.OverallBand != nil {
		for _, session := range sessions {
			if session.Band == nil {
				continue
			}
			session.OverallBand = result.OverallBand
			if err := s.repo.Session().UpdateOverallBand(ctx, session.ID, *result.OverallBand); err != nil {
				return nil, fmt.Errorf("failed to persist overall band for session %d: %w", session.ID, err)
			}
		}

		event := events.NewResultEvent(events.EventOverallComputed)
		event.StudentID = studentID
		event.TestID = linkedTestID
		event.OverallBand = result.OverallBand
		if err := s.publisher.PublishResultEvent(ctx, event); err != nil {
			// Reporting consumers catch up on the next recompute.
			s.logger.Error("Failed to publish overall band event",
				"student_id", studentID, "linked_test_id", linkedTestID, "error", err)
		}
	}

	return result, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
