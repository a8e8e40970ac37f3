package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

type ResultEventType string

const (
	EventSessionCompleted ResultEventType = "session.completed"
	EventResultEvaluated  ResultEventType = "result.evaluated"
	EventOverallComputed  ResultEventType = "overall.computed"
)

// ResultEvent is published whenever a session gains a band: on auto-scored
// submit, on manual evaluation, and when an overall band becomes computable.
// Downstream consumers (notification service, reporting warehouse) key off
// Type.
type ResultEvent struct {
	ID        string          `json:"id"`
	Type      ResultEventType `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`

	SessionID   uint              `json:"session_id"`
	StudentID   uint              `json:"student_id"`
	TestID      uint              `json:"test_id"`
	ModuleType  models.ModuleType `json:"module_type"`
	Band        *float64          `json:"band,omitempty"`
	OverallBand *float64          `json:"overall_band,omitempty"`
}

// NewResultEvent fills the envelope fields; callers set the payload.
func NewResultEvent(eventType ResultEventType) *ResultEvent {
	return &ResultEvent{
		ID:        watermill.NewUUID(),
		Type:      eventType,
		Source:    "mock-test-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
	}
}
