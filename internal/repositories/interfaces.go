package repositories

import (
	"context"
	"time"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	Status     *models.TestStatus `json:"status"`
	ModuleType *models.ModuleType `json:"module_type"`
	CreatedBy  *uint              `json:"created_by"`
	LinkedID   *uint              `json:"linked_id"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
	SortBy     string             `json:"sort_by"`    // "created_at", "title"
	SortOrder  string             `json:"sort_order"` // "asc", "desc"
}

type SessionFilters struct {
	Status    *models.SessionStatus `json:"status"`
	StudentID *uint                 `json:"student_id"`
	TestID    *uint                 `json:"test_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type SessionStats struct {
	TotalSessions     int                          `json:"total_sessions"`
	CompletedSessions int                          `json:"completed_sessions"`
	StatusBreakdown   map[models.SessionStatus]int `json:"status_breakdown"`
	AverageBand       float64                      `json:"average_band"`
	AverageScore      float64                      `json:"average_score"`
}

// ===== REPOSITORY INTERFACES =====

type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	GetByIDWithDetails(ctx context.Context, id uint) (*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	GetLinkedModules(ctx context.Context, linkedTestID uint) ([]*models.Test, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByTest(ctx context.Context, testID uint) ([]models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error
}

type BandScoreRepository interface {
	GetByTest(ctx context.Context, testID uint) ([]models.BandScoreRange, error)
	ReplaceForTest(ctx context.Context, testID uint, ranges []models.BandScoreRange) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.TestSession) error
	GetByID(ctx context.Context, id uint) (*models.TestSession, error)
	GetByIDWithDetails(ctx context.Context, id uint) (*models.TestSession, error)
	// UpdateVersioned persists the session only if the stored version still
	// matches expectedVersion, then bumps it and stamps UpdatedAt. Returns
	// ErrVersionConflict on a lost race.
	UpdateVersioned(ctx context.Context, session *models.TestSession, expectedVersion int) error
	// UpdateOverallBand writes only the overall_band column. The overall
	// recompute fans out over sessions read before the write; a full-row save
	// here could revert a concurrent versioned write.
	UpdateOverallBand(ctx context.Context, sessionID uint, overallBand float64) error
	GetCurrentSession(ctx context.Context, testID, studentID uint) (*models.TestSession, error)
	GetByStudentAndLinkedTest(ctx context.Context, studentID, linkedTestID uint) ([]*models.TestSession, error)
	List(ctx context.Context, filters SessionFilters) ([]*models.TestSession, int64, error)
	GetExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.TestSession, error)
	GetStats(ctx context.Context, testID uint) (*SessionStats, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// Repository aggregates all repositories behind one handle.
type Repository interface {
	Test() TestRepository
	Question() QuestionRepository
	BandScore() BandScoreRepository
	Session() SessionRepository
	User() UserRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}
