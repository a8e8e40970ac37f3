package postgres

import (
	"context"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"gorm.io/gorm"
)

type BandScorePostgreSQL struct {
	db *gorm.DB
}

func NewBandScorePostgreSQL(db *gorm.DB) repositories.BandScoreRepository {
	return &BandScorePostgreSQL{db: db}
}

// GetByTest returns the authored threshold table. Order is not trusted by
// callers; the band converter sorts defensively at use-site.
func (b *BandScorePostgreSQL) GetByTest(ctx context.Context, testID uint) ([]models.BandScoreRange, error) {
	var ranges []models.BandScoreRange
	if err := b.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("min_score desc").
		Find(&ranges).Error; err != nil {
		return nil, err
	}
	return ranges, nil
}

// ReplaceForTest swaps the whole table atomically; authoring edits the table
// as a unit.
func (b *BandScorePostgreSQL) ReplaceForTest(ctx context.Context, testID uint, ranges []models.BandScoreRange) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&models.BandScoreRange{}).Error; err != nil {
			return err
		}
		for i := range ranges {
			ranges[i].ID = 0
			ranges[i].TestID = testID
		}
		if len(ranges) == 0 {
			return nil
		}
		return tx.Create(&ranges).Error
	})
}
