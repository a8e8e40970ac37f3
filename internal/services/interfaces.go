package services

import (
	"context"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartSessionRequest struct {
	TestID uint `json:"test_id" validate:"required"`
}

type SaveAnswersRequest struct {
	Answers models.AnswerSheet `json:"answers" validate:"required"`
	// Version the client last saw; a stale version loses the write.
	Version int `json:"version" validate:"min=1"`
}

type SubmitSessionRequest struct {
	Answers   models.AnswerSheet      `json:"answers"`
	EndReason models.SessionEndReason `json:"end_reason" validate:"omitempty,oneof=submitted timeout"`
}

// EvaluateSessionRequest carries an instructor's manual bands. Writing
// sessions take per-task bands (task 2 weighted double); speaking takes a
// single band.
type EvaluateSessionRequest struct {
	Band      *float64 `json:"band" validate:"omitempty,band_score"`
	Task1Band *float64 `json:"task1_band" validate:"omitempty,band_score"`
	Task2Band *float64 `json:"task2_band" validate:"omitempty,band_score"`
	Score     *int     `json:"score" validate:"omitempty,min=0"`
}

type SessionResponse struct {
	*models.TestSession
	CanSubmit     bool `json:"can_submit"`
	TimeRemaining int  `json:"time_remaining"` // Seconds, 0 when no deadline or expired
}

type CreateTestRequest struct {
	Title        string            `json:"title" validate:"required,min=1,max=200"`
	Description  *string           `json:"description" validate:"omitempty,max=1000"`
	ModuleType   models.ModuleType `json:"module_type" validate:"required,module_type"`
	Duration     int               `json:"duration" validate:"required,min=5,max=240"`
	LinkedTestID *uint             `json:"linked_test_id"`
}

type UpdateTestRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Duration    *int    `json:"duration" validate:"omitempty,min=5,max=240"`
}

type CreateQuestionRequest struct {
	Part           int                 `json:"part" validate:"required,min=1,max=4"`
	QuestionNumber int                 `json:"question_number" validate:"required,min=1"`
	Type           models.QuestionType `json:"type" validate:"required,question_type"`
	Points         int                 `json:"points" validate:"omitempty,min=1"`
	GroupID        *string             `json:"group_id"`
	FieldKey       *string             `json:"field_key"`
	Content        interface{}         `json:"content"`
	CorrectAnswers []string            `json:"correct_answers"`
}

type BandRangeRequest struct {
	MinScore int     `json:"min_score" validate:"min=0"`
	Band     float64 `json:"band" validate:"band_score"`
}

type TestResponse struct {
	*models.Test
}

// ===== SERVICE INTERFACES =====

type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, creatorID uint) (*TestResponse, error)
	GetByID(ctx context.Context, id uint) (*TestResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint) (*TestResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTestRequest, userID uint) (*TestResponse, error)
	Delete(ctx context.Context, id uint, userID uint) error
	List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error)
	Publish(ctx context.Context, id uint, userID uint) error
	Archive(ctx context.Context, id uint, userID uint) error

	AddQuestions(ctx context.Context, testID uint, reqs []CreateQuestionRequest, userID uint) ([]*models.Question, error)
	ReplaceBandRanges(ctx context.Context, testID uint, reqs []BandRangeRequest, userID uint) error
}

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, studentID uint) (*SessionResponse, error)
	SaveAnswers(ctx context.Context, sessionID uint, req *SaveAnswersRequest, studentID uint) error
	Submit(ctx context.Context, sessionID uint, req *SubmitSessionRequest, studentID uint) (*SessionResponse, error)
	// HandleTimeout closes an expired session. callerID 0 is the internal
	// sweeper; any other caller must own the session or hold a staff role.
	HandleTimeout(ctx context.Context, sessionID uint, callerID uint) error
	Evaluate(ctx context.Context, sessionID uint, req *EvaluateSessionRequest, evaluatorID uint) (*SessionResponse, error)

	GetByID(ctx context.Context, id uint, userID uint) (*SessionResponse, error)
	GetResult(ctx context.Context, id uint, userID uint) (*models.DetailedScoreResult, error)
	GetCurrentSession(ctx context.Context, testID, studentID uint) (*SessionResponse, error)
	List(ctx context.Context, filters repositories.SessionFilters, userID uint) ([]*SessionResponse, int64, error)
	GetOverall(ctx context.Context, linkedTestID, studentID uint) (*models.OverallResult, error)
}

type ScoringService interface {
	// ScoreSubmission is pure given its inputs.
	ScoreSubmission(moduleType models.ModuleType, rawAnswers models.AnswerSheet, questions []models.Question, bandTable []models.BandScoreRange) *models.DetailedScoreResult
	// FinalizeSession fetches reference data, scores the session in place and
	// fills score/band/result. Missing reference data yields a zero result.
	FinalizeSession(ctx context.Context, session *models.TestSession) (*models.DetailedScoreResult, error)
	// RecomputeOverallBand refreshes the combined band across the sibling
	// module sessions of one linked exam.
	RecomputeOverallBand(ctx context.Context, studentID, linkedTestID uint) (*models.OverallResult, error)
}

type ExportService interface {
	ExportTestResultsToExcel(ctx context.Context, testID uint, userID uint) ([]byte, error)
	ExportTestResultsToCSV(ctx context.Context, testID uint, userID uint) ([]byte, error)
}

// ServiceManager bundles the services for handler wiring.
type ServiceManager interface {
	Test() TestService
	Session() SessionService
	Scoring() ScoringService
	Export() ExportService
}
