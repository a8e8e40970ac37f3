package services

import (
	"log/slog"

	"github.com/shax201/mock-test-v1-sub003/internal/cache"
	"github.com/shax201/mock-test-v1-sub003/internal/config"
	"github.com/shax201/mock-test-v1-sub003/internal/events"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
)

type serviceManager struct {
	testService    TestService
	sessionService SessionService
	scoringService ScoringService
	exportService  ExportService
}

// NewServiceManager wires the full service graph from its infrastructure
// dependencies.
func NewServiceManager(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	cfg *config.Config,
	logger *slog.Logger,
) ServiceManager {
	scoringService := NewScoringService(repo, logger, publisher)

	return &serviceManager{
		testService:    NewTestService(repo, cacheService, logger, cfg.CacheTTL),
		sessionService: NewSessionService(repo, scoringService, publisher, logger, cfg.SubmitGrace),
		scoringService: scoringService,
		exportService:  NewExportService(repo, logger),
	}
}

func (m *serviceManager) Test() TestService       { return m.testService }
func (m *serviceManager) Session() SessionService { return m.sessionService }
func (m *serviceManager) Scoring() ScoringService { return m.scoringService }
func (m *serviceManager) Export() ExportService   { return m.exportService }
