package postgres

import (
	"context"

	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB

	test      repositories.TestRepository
	question  repositories.QuestionRepository
	bandScore repositories.BandScoreRepository
	session   repositories.SessionRepository
	user      repositories.UserRepository
}

// NewRepository builds the GORM-backed aggregate repository.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &gormRepository{
		db:        db,
		test:      NewTestPostgreSQL(db),
		question:  NewQuestionPostgreSQL(db),
		bandScore: NewBandScorePostgreSQL(db),
		session:   NewSessionPostgreSQL(db),
		user:      NewUserPostgreSQL(db),
	}
}

func (r *gormRepository) Test() repositories.TestRepository           { return r.test }
func (r *gormRepository) Question() repositories.QuestionRepository   { return r.question }
func (r *gormRepository) BandScore() repositories.BandScoreRepository { return r.bandScore }
func (r *gormRepository) Session() repositories.SessionRepository     { return r.session }
func (r *gormRepository) User() repositories.UserRepository           { return r.user }

// WithTransaction runs fn against a repository bound to a single transaction.
func (r *gormRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// applyPaginationAndSort applies shared limit/offset/ordering rules.
func applyPaginationAndSort(query *gorm.DB, limit, offset int, sortBy, sortOrder string, allowed map[string]bool) *gorm.DB {
	if sortBy != "" && allowed[sortBy] {
		order := "desc"
		if sortOrder == "asc" {
			order = "asc"
		}
		query = query.Order(sortBy + " " + order)
	} else {
		query = query.Order("created_at desc")
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
