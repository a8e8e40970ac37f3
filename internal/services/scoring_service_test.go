package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/shax201/mock-test-v1-sub003/internal/events"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

func bandPtr(v float64) *float64 { return &v }

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func listeningQuestions(t *testing.T) []models.Question {
	t.Helper()
	return []models.Question{
		{ID: 1, TestID: 10, Part: 1, QuestionNumber: 1, Type: models.SingleChoice, CorrectAnswers: mustJSON(t, []string{"B"})},
		{ID: 2, TestID: 10, Part: 1, QuestionNumber: 2, Type: models.FillBlank, CorrectAnswers: mustJSON(t, []string{"harbour", "harbor"})},
		{ID: 3, TestID: 10, Part: 2, QuestionNumber: 3, Type: models.TrueFalseNotGiven, CorrectAnswers: mustJSON(t, []string{"not given"})},
	}
}

func listeningBandTable() []models.BandScoreRange {
	return []models.BandScoreRange{
		{TestID: 10, MinScore: 3, Band: 9.0},
		{TestID: 10, MinScore: 2, Band: 7.0},
		{TestID: 10, MinScore: 1, Band: 5.0},
		{TestID: 10, MinScore: 0, Band: 2.5},
	}
}

func TestScoringService_FinalizeSession_Listening(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewScoringService(repo, testLogger(), publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleListening, Status: models.TestPublished}
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.QuestionRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningQuestions(t), nil)
	repo.BandScoreRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningBandTable(), nil)

	session := &models.TestSession{
		ID:     1,
		TestID: 10,
		Answers: mustJSON(t, map[string]interface{}{
			"1": map[string]interface{}{"selected": "b"},
			"2": map[string]interface{}{"text": " Harbor "},
			"3": map[string]interface{}{"answer": "true"},
		}),
	}

	result, err := service.FinalizeSession(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 2, result.CorrectAnswers)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 7.0, result.BandScore)

	require.NotNil(t, session.Score)
	require.NotNil(t, session.Band)
	assert.Equal(t, 2, *session.Score)
	assert.Equal(t, 7.0, *session.Band)
	assert.NotEmpty(t, session.Result)

	var stored models.DetailedScoreResult
	require.NoError(t, json.Unmarshal(session.Result, &stored))
	assert.Equal(t, result.CorrectAnswers, stored.CorrectAnswers)
	assert.Equal(t, result.BandScore, stored.BandScore)
}

func TestScoringService_FinalizeSession_WritingLeavesBandNil(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewScoringService(repo, testLogger(), publisher)

	test := &models.Test{ID: 20, ModuleType: models.ModuleWriting, Status: models.TestPublished}
	repo.TestRepo.On("GetByID", mock.Anything, uint(20)).Return(test, nil)

	session := &models.TestSession{ID: 2, TestID: 20}

	result, err := service.FinalizeSession(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, models.ModuleWriting, result.ModuleType)
	assert.Nil(t, session.Band)
	assert.Nil(t, session.Score)
	repo.QuestionRepo.AssertNotCalled(t, "GetByTest", mock.Anything, mock.Anything)
}

func TestScoringService_FinalizeSession_UndecodableAnswersScoreZero(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewScoringService(repo, testLogger(), publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleListening}
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.QuestionRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningQuestions(t), nil)
	repo.BandScoreRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningBandTable(), nil)

	session := &models.TestSession{
		ID:      3,
		TestID:  10,
		Answers: datatypes.JSON(`not json`),
	}

	result, err := service.FinalizeSession(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 0, result.CorrectAnswers)
	assert.Equal(t, 3, result.TotalQuestions)
	require.NotNil(t, session.Band)
	assert.Equal(t, 2.5, *session.Band)
}

func TestScoringService_RecomputeOverallBand_AllModules(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewScoringService(repo, testLogger(), publisher)

	sessions := []*models.TestSession{
		{ID: 1, StudentID: 5, Band: bandPtr(7.0), Test: models.Test{ID: 11, ModuleType: models.ModuleListening}},
		{ID: 2, StudentID: 5, Band: bandPtr(6.5), Test: models.Test{ID: 12, ModuleType: models.ModuleReading}},
		{ID: 3, StudentID: 5, Band: bandPtr(6.0), Test: models.Test{ID: 13, ModuleType: models.ModuleWriting}},
	}
	repo.SessionRepo.On("GetByStudentAndLinkedTest", mock.Anything, uint(5), uint(100)).Return(sessions, nil)
	repo.SessionRepo.On("UpdateOverallBand", mock.Anything, mock.AnythingOfType("uint"), 6.5).Return(nil)

	result, err := service.RecomputeOverallBand(context.Background(), 5, 100)
	require.NoError(t, err)

	// (7.0 + 6.5 + 6.0) / 3 = 6.5
	require.NotNil(t, result.OverallBand)
	assert.Equal(t, 6.5, *result.OverallBand)
	assert.Equal(t, 6.5, result.LenientBand)
	assert.Len(t, result.ModuleBands, 3)

	repo.SessionRepo.AssertNumberOfCalls(t, "UpdateOverallBand", 3)
	for _, session := range sessions {
		repo.SessionRepo.AssertCalled(t, "UpdateOverallBand", mock.Anything, session.ID, 6.5)
		require.NotNil(t, session.OverallBand)
		assert.Equal(t, 6.5, *session.OverallBand)
	}
	// The recompute must never go through the versioned write path: it works
	// on sessions read before the loop and would clobber concurrent writes.
	repo.SessionRepo.AssertNotCalled(t, "UpdateVersioned", mock.Anything, mock.Anything, mock.Anything)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventOverallComputed, published[0].Type)
	assert.Equal(t, uint(5), published[0].StudentID)
}

func TestScoringService_RecomputeOverallBand_PartialModules(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewScoringService(repo, testLogger(), publisher)

	sessions := []*models.TestSession{
		{ID: 1, StudentID: 5, Band: bandPtr(7.0), Test: models.Test{ID: 11, ModuleType: models.ModuleListening}},
		{ID: 2, StudentID: 5, Band: nil, Test: models.Test{ID: 12, ModuleType: models.ModuleReading}},
	}
	repo.SessionRepo.On("GetByStudentAndLinkedTest", mock.Anything, uint(5), uint(100)).Return(sessions, nil)

	result, err := service.RecomputeOverallBand(context.Background(), 5, 100)
	require.NoError(t, err)

	assert.Nil(t, result.OverallBand)
	assert.Equal(t, 7.0, result.LenientBand)
	assert.Len(t, result.ModuleBands, 1)

	repo.SessionRepo.AssertNotCalled(t, "UpdateOverallBand", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}
