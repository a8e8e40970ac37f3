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

type sessionService struct {
	repo      repositories.Repository
	scoring   ScoringService
	publisher events.EventPublisher
	logger    *slog.Logger

	// Grace period after end_time during which a submit is still accepted
	// as "submitted" rather than forced to timeout.
	submitGrace time.Duration
}

func NewSessionService(
	repo repositories.Repository,
	scoringService ScoringService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	submitGrace time.Duration,
) SessionService {
	return &sessionService{
		repo:        repo,
		scoring:     scoringService,
		publisher:   publisher,
		logger:      logger,
		submitGrace: submitGrace,
	}
}

// Start creates a session for the student, or resumes the active one when it
// exists. Starting is idempotent per (student, test) while a session is open.
func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, studentID uint) (*SessionResponse, error) {
	test, err := s.repo.Test().GetByID(ctx, req.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.Status != models.TestPublished {
		return nil, ErrTestNotPublished
	}

	existing, err := s.repo.Session().GetCurrentSession(ctx, req.TestID, studentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check current session: %w", err)
	}

	now := time.Now().UTC()

	if existing != nil {
		if existing.Active(now) {
			s.logger.Info("Resuming active session",
				"session_id", existing.ID, "student_id", studentID, "test_id", req.TestID)
			return s.toResponse(existing, now), nil
		}
		// The deadline passed while the client was away. Close it out before
		// starting fresh.
		if err := s.HandleTimeout(ctx, existing.ID, studentID); err != nil {
			return nil, err
		}
	}

	endTime := now.Add(time.Duration(test.Duration) * time.Minute)
	session := &models.TestSession{
		TestID:    req.TestID,
		StudentID: studentID,
		Status:    models.SessionInProgress,
		StartedAt: now,
		EndTime:   &endTime,
		Version:   1,
	}

	if err := s.repo.Session().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	session.Test = *test

	s.logger.Info("Session started",
		"session_id", session.ID,
		"student_id", studentID,
		"test_id", req.TestID,
		"end_time", endTime)

	return s.toResponse(session, now), nil
}

// SaveAnswers persists an auto-save tick. The client echoes back the version
// it last saw; a stale version means another writer (a second tab, a submit)
// got there first and this write is rejected.
func (s *sessionService) SaveAnswers(ctx context.Context, sessionID uint, req *SaveAnswersRequest, studentID uint) error {
	session, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if !session.Active(now) {
		if session.Status != models.SessionInProgress {
			return ErrSessionAlreadyCompleted
		}
		return ErrSessionExpired
	}

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	session.Answers = answersJSON

	if err := s.repo.Session().UpdateVersioned(ctx, session, req.Version); err != nil {
		if repositories.IsVersionConflict(err) {
			return ErrSessionConflict
		}
		return fmt.Errorf("failed to save answers: %w", err)
	}

	return nil
}

// Submit finalizes the session and runs scoring. Submitting an already
// completed session fails with ErrSessionAlreadyCompleted.
func (s *sessionService) Submit(ctx context.Context, sessionID uint, req *SubmitSessionRequest, studentID uint) (*SessionResponse, error) {
	session, err := s.getOwnedSession(ctx, sessionID, studentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if session.Status != models.SessionInProgress {
		return nil, ErrSessionAlreadyCompleted
	}

	endReason := req.EndReason
	if endReason == "" {
		endReason = models.SessionEndSubmitted
	}

	withinWindow := session.EndTime == nil || now.Before(session.EndTime.Add(s.submitGrace))
	if !withinWindow {
		// Too late: the answers sent with this request are ignored, the last
		// auto-saved set is what gets scored.
		endReason = models.SessionEndTimeout
	} else if req.Answers != nil {
		answersJSON, err := json.Marshal(req.Answers)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answers: %w", err)
		}
		session.Answers = answersJSON
	}

	expectedVersion := session.Version
	session.Status = models.SessionCompleted
	session.EndReason = &endReason
	session.IsCompleted = true
	session.CompletedAt = timePtr(now)

	result, err := s.scoring.FinalizeSession(ctx, session)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Session().UpdateVersioned(ctx, session, expectedVersion); err != nil {
		if repositories.IsVersionConflict(err) {
			return nil, ErrSessionConflict
		}
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	s.logger.Info("Session submitted",
		"session_id", session.ID,
		"student_id", studentID,
		"end_reason", endReason,
		"band", session.Band)

	s.publishSessionEvent(ctx, events.EventSessionCompleted, session, result.ModuleType)

	if session.Band != nil {
		s.recomputeOverallFor(ctx, session)
	}

	return s.toResponse(session, now), nil
}

// HandleTimeout closes an expired session on behalf of the sweeper, a resume
// attempt or an explicit timeout request. Already closed sessions are a
// no-op. A callerID of 0 marks the internal sweeper; everyone else needs to
// own the session or hold a staff role.
func (s *sessionService) HandleTimeout(ctx context.Context, sessionID uint, callerID uint) error {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if callerID != 0 {
		if err := s.authorizeAccess(ctx, session, callerID, "timeout"); err != nil {
			return err
		}
	}

	if session.Status != models.SessionInProgress {
		return nil
	}

	now := time.Now().UTC()
	if session.EndTime != nil && now.Before(session.EndTime.Add(s.submitGrace)) {
		return ErrSessionNotActive
	}

	expectedVersion := session.Version
	endReason := models.SessionEndTimeout
	session.Status = models.SessionCompleted
	session.EndReason = &endReason
	session.IsCompleted = true
	session.CompletedAt = timePtr(now)

	result, err := s.scoring.FinalizeSession(ctx, session)
	if err != nil {
		return err
	}

	if err := s.repo.Session().UpdateVersioned(ctx, session, expectedVersion); err != nil {
		if repositories.IsVersionConflict(err) {
			// Someone else closed it concurrently, which is the outcome we
			// wanted anyway.
			return nil
		}
		return fmt.Errorf("failed to time out session: %w", err)
	}

	s.logger.Info("Session timed out", "session_id", session.ID)

	s.publishSessionEvent(ctx, events.EventSessionCompleted, session, result.ModuleType)

	if session.Band != nil {
		s.recomputeOverallFor(ctx, session)
	}

	return nil
}

// Evaluate records an instructor's manual bands for writing and speaking
// sessions. Re-evaluation overwrites the previous values.
func (s *sessionService) Evaluate(ctx context.Context, sessionID uint, req *EvaluateSessionRequest, evaluatorID uint) (*SessionResponse, error) {
	evaluator, err := s.repo.User().GetByID(ctx, evaluatorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get evaluator: %w", err)
	}
	if evaluator.Role == models.RoleStudent {
		return nil, NewPermissionError(evaluatorID, sessionID, "session", "evaluate", "only instructors can evaluate sessions")
	}

	session, err := s.repo.Session().GetByIDWithDetails(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Status == models.SessionInProgress {
		return nil, ErrSessionNotActive
	}

	var band float64
	switch session.Test.ModuleType {
	case models.ModuleWriting:
		if req.Task1Band == nil && req.Task2Band == nil {
			return nil, ErrEvaluationInvalid
		}
		band = scoring.CombineWritingTaskBands(req.Task1Band, req.Task2Band)
	case models.ModuleSpeaking:
		if req.Band == nil {
			return nil, ErrEvaluationInvalid
		}
		band = *req.Band
	default:
		return nil, ErrEvaluationNotAllowed
	}

	expectedVersion := session.Version
	session.Band = &band
	session.Score = req.Score
	session.Status = models.SessionEvaluated
	session.EvaluatedBy = &evaluatorID

	if err := s.repo.Session().UpdateVersioned(ctx, session, expectedVersion); err != nil {
		if repositories.IsVersionConflict(err) {
			return nil, ErrSessionConflict
		}
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	s.logger.Info("Session evaluated",
		"session_id", session.ID,
		"evaluator_id", evaluatorID,
		"band", band)

	s.publishSessionEvent(ctx, events.EventResultEvaluated, session, session.Test.ModuleType)

	s.recomputeOverallFor(ctx, session)

	return s.toResponse(session, time.Now().UTC()), nil
}

func (s *sessionService) GetByID(ctx context.Context, id uint, userID uint) (*SessionResponse, error) {
	session, err := s.repo.Session().GetByIDWithDetails(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.authorizeAccess(ctx, session, userID, "read"); err != nil {
		return nil, err
	}

	return s.toResponse(session, time.Now().UTC()), nil
}

func (s *sessionService) GetResult(ctx context.Context, id uint, userID uint) (*models.DetailedScoreResult, error) {
	session, err := s.repo.Session().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.authorizeAccess(ctx, session, userID, "read"); err != nil {
		return nil, err
	}

	if len(session.Result) == 0 {
		return nil, ErrNotFound
	}

	var result models.DetailedScoreResult
	if err := json.Unmarshal(session.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}

	return &result, nil
}

func (s *sessionService) GetCurrentSession(ctx context.Context, testID, studentID uint) (*SessionResponse, error) {
	session, err := s.repo.Session().GetCurrentSession(ctx, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}

	return s.toResponse(session, time.Now().UTC()), nil
}

// List returns sessions visible to the caller. Students only ever see their
// own sessions regardless of the requested filters.
func (s *sessionService) List(ctx context.Context, filters repositories.SessionFilters, userID uint) ([]*SessionResponse, int64, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Role == models.RoleStudent {
		filters.StudentID = &userID
	}

	sessions, total, err := s.repo.Session().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now().UTC()
	responses := make([]*SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, s.toResponse(session, now))
	}

	return responses, total, nil
}

func (s *sessionService) GetOverall(ctx context.Context, linkedTestID, studentID uint) (*models.OverallResult, error) {
	return s.scoring.RecomputeOverallBand(ctx, studentID, linkedTestID)
}

// ===== HELPERS =====

func (s *sessionService) getOwnedSession(ctx context.Context, sessionID, studentID uint) (*models.TestSession, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.StudentID != studentID {
		return nil, NewPermissionError(studentID, sessionID, "session", "modify", "session belongs to another student")
	}

	return session, nil
}

// authorizeAccess allows the owning student and any staff role.
func (s *sessionService) authorizeAccess(ctx context.Context, session *models.TestSession, userID uint, action string) error {
	if session.StudentID == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.Role == models.RoleStudent {
		return NewPermissionError(userID, session.ID, "session", action, "session belongs to another student")
	}

	return nil
}

func (s *sessionService) toResponse(session *models.TestSession, now time.Time) *SessionResponse {
	resp := &SessionResponse{
		TestSession: session,
		CanSubmit:   session.Status == models.SessionInProgress,
	}

	if session.EndTime != nil {
		if remaining := session.EndTime.Sub(now); remaining > 0 {
			resp.TimeRemaining = int(remaining.Seconds())
		} else if session.Status == models.SessionInProgress {
			resp.CanSubmit = now.Before(session.EndTime.Add(s.submitGrace))
		}
	}

	return resp
}

func (s *sessionService) publishSessionEvent(ctx context.Context, eventType events.ResultEventType, session *models.TestSession, moduleType models.ModuleType) {
	event := events.NewResultEvent(eventType)
	event.SessionID = session.ID
	event.StudentID = session.StudentID
	event.TestID = session.TestID
	event.ModuleType = moduleType
	event.Band = session.Band

	if err := s.publisher.PublishResultEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish session event",
			"session_id", session.ID, "event_type", eventType, "error", err)
	}
}

// recomputeOverallFor refreshes the linked overall band after a module band
// changed. Failures are logged, not surfaced: the module result itself is
// already durable.
func (s *sessionService) recomputeOverallFor(ctx context.Context, session *models.TestSession) {
	test := &session.Test
	if test.ID == 0 {
		loaded, err := s.repo.Test().GetByID(ctx, session.TestID)
		if err != nil {
			s.logger.Error("Failed to load test for overall recompute",
				"session_id", session.ID, "error", err)
			return
		}
		test = loaded
	}

	if test.LinkedTestID == nil {
		return
	}

	if _, err := s.scoring.RecomputeOverallBand(ctx, session.StudentID, *test.LinkedTestID); err != nil {
		s.logger.Error("Failed to recompute overall band",
			"session_id", session.ID, "linked_test_id", *test.LinkedTestID, "error", err)
	}
}
