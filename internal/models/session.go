package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionEvaluated  SessionStatus = "evaluated"
)

type SessionEndReason string

const (
	SessionEndSubmitted SessionEndReason = "submitted"
	SessionEndTimeout   SessionEndReason = "timeout"
)

// TestSession is one student's attempt at one test module. Sessions move
// forward only: in_progress -> completed -> evaluated. Re-evaluation
// overwrites band/score in place, it never transitions backward.
type TestSession struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	TestID    uint `json:"test_id" gorm:"not null;index"`
	StudentID uint `json:"student_id" gorm:"not null;index"`

	Status    SessionStatus     `json:"status" gorm:"default:in_progress;index"`
	EndReason *SessionEndReason `json:"end_reason"`

	// Candidate answers, mutated on every auto-save tick, immutable once the
	// session is completed.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	// Raw correct count for auto-scored modules; instructor-entered for
	// writing/speaking.
	Score *int `json:"score"`

	// Band is nil until scoring completes for this module.
	Band *float64 `json:"band" validate:"omitempty,min=0,max=9"`

	// OverallBand is set only once all sibling module bands exist.
	OverallBand *float64 `json:"overall_band"`

	IsCompleted bool       `json:"is_completed" gorm:"default:false;index"`
	CompletedAt *time.Time `json:"completed_at"`
	EvaluatedBy *uint      `json:"evaluated_by"`

	// Server-side submission window
	StartedAt time.Time  `json:"started_at"`
	EndTime   *time.Time `json:"end_time"`

	// Detailed per-part/per-type breakdown produced by the scorer
	Result datatypes.JSON `json:"result" gorm:"type:jsonb"`

	// Optimistic concurrency: auto-save, submit and manual evaluation can
	// race; stale writers lose on a version mismatch.
	Version int `json:"version" gorm:"default:1"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Test    Test `json:"test" gorm:"foreignKey:TestID"`
	Student User `json:"student" gorm:"foreignKey:StudentID"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// Active reports whether the session still accepts answer writes.
func (s *TestSession) Active(now time.Time) bool {
	if s.Status != SessionInProgress {
		return false
	}
	if s.EndTime != nil && now.After(*s.EndTime) {
		return false
	}
	return true
}
