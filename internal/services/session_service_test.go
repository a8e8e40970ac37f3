package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shax201/mock-test-v1-sub003/internal/events"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

const testSubmitGrace = 30 * time.Second

func newSessionServiceUnderTest(repo *MockRepository, publisher *events.MockEventPublisher) SessionService {
	logger := testLogger()
	scoringService := NewScoringService(repo, logger, publisher)
	return NewSessionService(repo, scoringService, publisher, logger, testSubmitGrace)
}

// stampVersionedWrite mirrors the repository contract for a successful
// guarded write: the version is bumped and UpdatedAt advances.
func stampVersionedWrite(args mock.Arguments) {
	session := args.Get(1).(*models.TestSession)
	session.Version = args.Get(2).(int) + 1
	session.UpdatedAt = time.Now().UTC()
}

func activeSession(id, testID, studentID uint) *models.TestSession {
	now := time.Now().UTC()
	end := now.Add(30 * time.Minute)
	return &models.TestSession{
		ID:        id,
		TestID:    testID,
		StudentID: studentID,
		Status:    models.SessionInProgress,
		StartedAt: now.Add(-10 * time.Minute),
		EndTime:   &end,
		Version:   1,
	}
}

func TestSessionService_Start_CreatesSession(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleReading, Status: models.TestPublished, Duration: 60}
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.SessionRepo.On("GetCurrentSession", mock.Anything, uint(10), uint(5)).Return(nil, gorm.ErrRecordNotFound)
	repo.SessionRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.TestSession")).Return(nil)

	resp, err := service.Start(context.Background(), &StartSessionRequest{TestID: 10}, 5)
	require.NoError(t, err)

	assert.Equal(t, models.SessionInProgress, resp.Status)
	assert.True(t, resp.CanSubmit)
	require.NotNil(t, resp.EndTime)
	assert.InDelta(t, 60*60, resp.TimeRemaining, 5)
	assert.Equal(t, 1, resp.Version)
}

func TestSessionService_Start_ResumesActiveSession(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleReading, Status: models.TestPublished, Duration: 60}
	existing := activeSession(1, 10, 5)
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.SessionRepo.On("GetCurrentSession", mock.Anything, uint(10), uint(5)).Return(existing, nil)

	resp, err := service.Start(context.Background(), &StartSessionRequest{TestID: 10}, 5)
	require.NoError(t, err)

	assert.Equal(t, uint(1), resp.ID)
	repo.SessionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSessionService_Start_UnpublishedTest(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, Status: models.TestDraft}
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)

	_, err := service.Start(context.Background(), &StartSessionRequest{TestID: 10}, 5)
	assert.ErrorIs(t, err, ErrTestNotPublished)
}

func TestSessionService_SaveAnswers_Success(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Return(nil)

	req := &SaveAnswersRequest{
		Answers: models.AnswerSheet{"1": map[string]interface{}{"selected": "A"}},
		Version: 1,
	}

	err := service.SaveAnswers(context.Background(), 1, req, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Answers)
}

func TestSessionService_SaveAnswers_VersionConflict(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Return(repositories.ErrVersionConflict)

	req := &SaveAnswersRequest{Answers: models.AnswerSheet{}, Version: 1}

	err := service.SaveAnswers(context.Background(), 1, req, 5)
	assert.ErrorIs(t, err, ErrSessionConflict)
}

func TestSessionService_SaveAnswers_ExpiredSession(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	past := time.Now().UTC().Add(-time.Minute)
	session.EndTime = &past
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)

	req := &SaveAnswersRequest{Answers: models.AnswerSheet{}, Version: 1}

	err := service.SaveAnswers(context.Background(), 1, req, 5)
	assert.ErrorIs(t, err, ErrSessionExpired)
	repo.SessionRepo.AssertNotCalled(t, "UpdateVersioned", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_SaveAnswers_WrongStudent(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)

	req := &SaveAnswersRequest{Answers: models.AnswerSheet{}, Version: 1}

	err := service.SaveAnswers(context.Background(), 1, req, 99)
	assert.True(t, IsUnauthorized(err))
}

func TestSessionService_Submit_ScoresListeningSession(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleListening, Status: models.TestPublished, Duration: 30}
	session := activeSession(1, 10, 5)

	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Return(nil)
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.QuestionRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningQuestions(t), nil)
	repo.BandScoreRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningBandTable(), nil)

	req := &SubmitSessionRequest{
		Answers: models.AnswerSheet{
			"1": map[string]interface{}{"selected": "B"},
			"2": map[string]interface{}{"text": "harbour"},
			"3": map[string]interface{}{"answer": "not given"},
		},
	}

	resp, err := service.Submit(context.Background(), 1, req, 5)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, resp.Status)
	assert.True(t, resp.IsCompleted)
	require.NotNil(t, resp.EndReason)
	assert.Equal(t, models.SessionEndSubmitted, *resp.EndReason)
	require.NotNil(t, resp.Band)
	assert.Equal(t, 9.0, *resp.Band)
	require.NotNil(t, resp.CompletedAt)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventSessionCompleted, published[0].Type)
	assert.Equal(t, uint(1), published[0].SessionID)
}

func TestSessionService_Submit_SecondSubmitRejected(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	session.Status = models.SessionCompleted
	session.IsCompleted = true
	band := 6.5
	session.Band = &band
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)

	_, err := service.Submit(context.Background(), 1, &SubmitSessionRequest{}, 5)
	assert.ErrorIs(t, err, ErrSessionAlreadyCompleted)
	repo.SessionRepo.AssertNotCalled(t, "UpdateVersioned", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestSessionService_Submit_PastGraceBecomesTimeout(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleListening, Duration: 30}
	session := activeSession(1, 10, 5)
	past := time.Now().UTC().Add(-5 * time.Minute)
	session.EndTime = &past
	session.Answers = mustJSON(t, map[string]interface{}{
		"1": map[string]interface{}{"selected": "B"},
	})

	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Return(nil)
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.QuestionRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningQuestions(t), nil)
	repo.BandScoreRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningBandTable(), nil)

	// These answers arrived too late and must not replace the saved set.
	req := &SubmitSessionRequest{
		Answers: models.AnswerSheet{
			"1": map[string]interface{}{"selected": "B"},
			"2": map[string]interface{}{"text": "harbour"},
			"3": map[string]interface{}{"answer": "not given"},
		},
	}

	resp, err := service.Submit(context.Background(), 1, req, 5)
	require.NoError(t, err)

	require.NotNil(t, resp.EndReason)
	assert.Equal(t, models.SessionEndTimeout, *resp.EndReason)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 1, *resp.Score)
}

func TestSessionService_Evaluate_WritingCombinesTaskBands(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	linkedID := uint(100)
	session := activeSession(1, 20, 5)
	session.Status = models.SessionCompleted
	session.IsCompleted = true
	session.Test = models.Test{ID: 20, ModuleType: models.ModuleWriting, LinkedTestID: &linkedID}

	instructor := &models.User{ID: 9, Role: models.RoleInstructor}
	repo.UserRepo.On("GetByID", mock.Anything, uint(9)).Return(instructor, nil)
	repo.SessionRepo.On("GetByIDWithDetails", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Run(stampVersionedWrite).Return(nil)
	repo.SessionRepo.On("GetByStudentAndLinkedTest", mock.Anything, uint(5), uint(100)).
		Return([]*models.TestSession{session}, nil)

	req := &EvaluateSessionRequest{Task1Band: bandPtr(6.0), Task2Band: bandPtr(7.0)}

	resp, err := service.Evaluate(context.Background(), 1, req, 9)
	require.NoError(t, err)

	// (6.0 + 7.0*2) / 3 = 6.666 -> 6.5
	require.NotNil(t, resp.Band)
	assert.Equal(t, 6.5, *resp.Band)
	assert.Equal(t, models.SessionEvaluated, resp.Status)
	require.NotNil(t, resp.EvaluatedBy)
	assert.Equal(t, uint(9), *resp.EvaluatedBy)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventResultEvaluated, published[0].Type)

	firstEvaluatedAt := resp.UpdatedAt

	// Re-evaluation overwrites the previous band, last call wins, and the
	// session row visibly moves.
	repo.SessionRepo.ExpectedCalls = nil
	repo.SessionRepo.On("GetByIDWithDetails", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, session.Version).Run(stampVersionedWrite).Return(nil)
	repo.SessionRepo.On("GetByStudentAndLinkedTest", mock.Anything, uint(5), uint(100)).
		Return([]*models.TestSession{session}, nil)

	resp, err = service.Evaluate(context.Background(), 1, &EvaluateSessionRequest{
		Task1Band: bandPtr(7.0),
		Task2Band: bandPtr(7.5),
	}, 9)
	require.NoError(t, err)

	// (7.0 + 7.5*2) / 3 = 7.333 -> 7.5
	assert.Equal(t, 7.5, *resp.Band)
	assert.True(t, resp.UpdatedAt.After(firstEvaluatedAt))
}

func TestSessionService_Evaluate_StudentForbidden(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	student := &models.User{ID: 5, Role: models.RoleStudent}
	repo.UserRepo.On("GetByID", mock.Anything, uint(5)).Return(student, nil)

	_, err := service.Evaluate(context.Background(), 1, &EvaluateSessionRequest{Band: bandPtr(7.0)}, 5)
	assert.True(t, IsUnauthorized(err))
}

func TestSessionService_Evaluate_AutoScoredModuleRejected(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	session.Status = models.SessionCompleted
	session.Test = models.Test{ID: 10, ModuleType: models.ModuleListening}

	instructor := &models.User{ID: 9, Role: models.RoleInstructor}
	repo.UserRepo.On("GetByID", mock.Anything, uint(9)).Return(instructor, nil)
	repo.SessionRepo.On("GetByIDWithDetails", mock.Anything, uint(1)).Return(session, nil)

	_, err := service.Evaluate(context.Background(), 1, &EvaluateSessionRequest{Band: bandPtr(7.0)}, 9)
	assert.ErrorIs(t, err, ErrEvaluationNotAllowed)
}

func TestSessionService_Evaluate_WritingRequiresTaskBands(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 20, 5)
	session.Status = models.SessionCompleted
	session.Test = models.Test{ID: 20, ModuleType: models.ModuleWriting}

	instructor := &models.User{ID: 9, Role: models.RoleInstructor}
	repo.UserRepo.On("GetByID", mock.Anything, uint(9)).Return(instructor, nil)
	repo.SessionRepo.On("GetByIDWithDetails", mock.Anything, uint(1)).Return(session, nil)

	_, err := service.Evaluate(context.Background(), 1, &EvaluateSessionRequest{}, 9)
	assert.ErrorIs(t, err, ErrEvaluationInvalid)
}

func TestSessionService_HandleTimeout_ClosedSessionIsNoop(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	session.Status = models.SessionCompleted
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)

	err := service.HandleTimeout(context.Background(), 1, 5)
	require.NoError(t, err)
	repo.SessionRepo.AssertNotCalled(t, "UpdateVersioned", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_HandleTimeout_ActiveSessionNotExpired(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)

	err := service.HandleTimeout(context.Background(), 1, 5)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSessionService_HandleTimeout_OtherStudentForbidden(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	session := activeSession(1, 10, 5)
	past := time.Now().UTC().Add(-5 * time.Minute)
	session.EndTime = &past

	other := &models.User{ID: 7, Role: models.RoleStudent}
	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.UserRepo.On("GetByID", mock.Anything, uint(7)).Return(other, nil)

	err := service.HandleTimeout(context.Background(), 1, 7)
	assert.True(t, IsUnauthorized(err))
	repo.SessionRepo.AssertNotCalled(t, "UpdateVersioned", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_HandleTimeout_SweeperBypassesOwnership(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	test := &models.Test{ID: 10, ModuleType: models.ModuleListening, Duration: 30}
	session := activeSession(1, 10, 5)
	past := time.Now().UTC().Add(-5 * time.Minute)
	session.EndTime = &past

	repo.SessionRepo.On("GetByID", mock.Anything, uint(1)).Return(session, nil)
	repo.SessionRepo.On("UpdateVersioned", mock.Anything, session, 1).Return(nil)
	repo.TestRepo.On("GetByID", mock.Anything, uint(10)).Return(test, nil)
	repo.QuestionRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningQuestions(t), nil)
	repo.BandScoreRepo.On("GetByTest", mock.Anything, uint(10)).Return(listeningBandTable(), nil)

	err := service.HandleTimeout(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, session.Status)
	require.NotNil(t, session.EndReason)
	assert.Equal(t, models.SessionEndTimeout, *session.EndReason)
	repo.UserRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestSessionService_List_StudentSeesOnlyOwnSessions(t *testing.T) {
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(testLogger())
	service := newSessionServiceUnderTest(repo, publisher)

	student := &models.User{ID: 5, Role: models.RoleStudent}
	repo.UserRepo.On("GetByID", mock.Anything, uint(5)).Return(student, nil)

	other := uint(42)
	captured := repositories.SessionFilters{}
	repo.SessionRepo.On("List", mock.Anything, mock.AnythingOfType("repositories.SessionFilters")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(repositories.SessionFilters)
		}).
		Return([]*models.TestSession{}, int64(0), nil)

	_, _, err := service.List(context.Background(), repositories.SessionFilters{StudentID: &other}, 5)
	require.NoError(t, err)

	require.NotNil(t, captured.StudentID)
	assert.Equal(t, uint(5), *captured.StudentID)
}
