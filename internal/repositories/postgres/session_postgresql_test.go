package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

func TestVersionedColumns_StampsUpdatedAt(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := &models.TestSession{
		ID:        1,
		TestID:    10,
		StudentID: 5,
		Status:    models.SessionEvaluated,
		Version:   3,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	now := createdAt.Add(2 * time.Hour)
	columns := versionedColumns(session, now)

	// Repeated evaluation keeps the row moving even when the band value does
	// not change.
	require.Contains(t, columns, "updated_at")
	stamped, ok := columns["updated_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, stamped.After(session.CreatedAt))
	assert.Equal(t, now, stamped)

	assert.Equal(t, 3, columns["version"])
}

func TestVersionedColumns_LeavesIdentityColumnsAlone(t *testing.T) {
	end := time.Now().UTC()
	session := &models.TestSession{
		ID:        1,
		TestID:    10,
		StudentID: 5,
		StartedAt: end.Add(-time.Hour),
		EndTime:   &end,
	}

	columns := versionedColumns(session, time.Now().UTC())

	for _, immutable := range []string{"id", "test_id", "student_id", "started_at", "end_time", "created_at"} {
		assert.NotContains(t, columns, immutable)
	}
}
