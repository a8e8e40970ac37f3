package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTestRepository is a mock implementation of TestRepository
type MockTestRepository struct {
	mock.Mock
}

func (m *MockTestRepository) Create(ctx context.Context, test *models.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Test), args.Error(1)
}

func (m *MockTestRepository) GetByIDWithDetails(ctx context.Context, id uint) (*models.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Test), args.Error(1)
}

func (m *MockTestRepository) Update(ctx context.Context, test *models.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTestRepository) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.Test), args.Get(1).(int64), args.Error(2)
}

func (m *MockTestRepository) GetLinkedModules(ctx context.Context, linkedTestID uint) ([]*models.Test, error) {
	args := m.Called(ctx, linkedTestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Test), args.Error(1)
}

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByTest(ctx context.Context, testID uint) ([]models.Question, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Question), args.Error(1)
}

func (m *MockQuestionRepository) Update(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockBandScoreRepository is a mock implementation of BandScoreRepository
type MockBandScoreRepository struct {
	mock.Mock
}

func (m *MockBandScoreRepository) GetByTest(ctx context.Context, testID uint) ([]models.BandScoreRange, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BandScoreRange), args.Error(1)
}

func (m *MockBandScoreRepository) ReplaceForTest(ctx context.Context, testID uint, ranges []models.BandScoreRange) error {
	args := m.Called(ctx, testID, ranges)
	return args.Error(0)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.TestSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uint) (*models.TestSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestSession), args.Error(1)
}

func (m *MockSessionRepository) GetByIDWithDetails(ctx context.Context, id uint) (*models.TestSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestSession), args.Error(1)
}

func (m *MockSessionRepository) UpdateVersioned(ctx context.Context, session *models.TestSession, expectedVersion int) error {
	args := m.Called(ctx, session, expectedVersion)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateOverallBand(ctx context.Context, sessionID uint, overallBand float64) error {
	args := m.Called(ctx, sessionID, overallBand)
	return args.Error(0)
}

func (m *MockSessionRepository) GetCurrentSession(ctx context.Context, testID, studentID uint) (*models.TestSession, error) {
	args := m.Called(ctx, testID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TestSession), args.Error(1)
}

func (m *MockSessionRepository) GetByStudentAndLinkedTest(ctx context.Context, studentID, linkedTestID uint) ([]*models.TestSession, error) {
	args := m.Called(ctx, studentID, linkedTestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TestSession), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.TestSession, int64, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.TestSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) GetExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.TestSession, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TestSession), args.Error(1)
}

func (m *MockSessionRepository) GetStats(ctx context.Context, testID uint) (*repositories.SessionStats, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.SessionStats), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockRepository aggregates the entity mocks behind the Repository interface.
// WithTransaction runs fn against the same mocks, which is enough for service
// level tests.
type MockRepository struct {
	TestRepo      *MockTestRepository
	QuestionRepo  *MockQuestionRepository
	BandScoreRepo *MockBandScoreRepository
	SessionRepo   *MockSessionRepository
	UserRepo      *MockUserRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		TestRepo:      &MockTestRepository{},
		QuestionRepo:  &MockQuestionRepository{},
		BandScoreRepo: &MockBandScoreRepository{},
		SessionRepo:   &MockSessionRepository{},
		UserRepo:      &MockUserRepository{},
	}
}

func (m *MockRepository) Test() repositories.TestRepository           { return m.TestRepo }
func (m *MockRepository) Question() repositories.QuestionRepository   { return m.QuestionRepo }
func (m *MockRepository) BandScore() repositories.BandScoreRepository { return m.BandScoreRepo }
func (m *MockRepository) Session() repositories.SessionRepository     { return m.SessionRepo }
func (m *MockRepository) User() repositories.UserRepository           { return m.UserRepo }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }
