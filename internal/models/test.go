package models

import (
	"time"

	"gorm.io/gorm"
)

type ModuleType string

const (
	ModuleListening ModuleType = "listening"
	ModuleReading   ModuleType = "reading"
	ModuleWriting   ModuleType = "writing"
	ModuleSpeaking  ModuleType = "speaking"
)

type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestPublished TestStatus = "published"
	TestArchived  TestStatus = "archived"
)

// Test is one module of a mock exam. The four modules of a single mock exam
// share a LinkedTestID so results can be combined into an overall band.
type Test struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	ModuleType  ModuleType `json:"module_type" gorm:"not null;index" validate:"required,module_type"`
	Status      TestStatus `json:"status" gorm:"default:draft;index" validate:"omitempty,test_status"`
	Duration    int        `json:"duration" gorm:"not null" validate:"required,min=5,max=240"` // Minutes

	LinkedTestID *uint `json:"linked_test_id" gorm:"index"`

	// Metadata
	CreatedBy uint           `json:"created_by" gorm:"not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Version int `json:"version" gorm:"default:1"`

	// Relations
	Parts      []TestPart       `json:"parts" gorm:"foreignKey:TestID"`
	Questions  []Question       `json:"questions" gorm:"foreignKey:TestID"`
	BandRanges []BandScoreRange `json:"band_ranges" gorm:"foreignKey:TestID"`
	Creator    User             `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
	SessionCount   int `json:"session_count" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

// TestPart carries the passage text or audio reference a group of questions
// belongs to. Reading/writing tests have up to 3 parts, listening has 4.
type TestPart struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	TestID uint `json:"test_id" gorm:"not null;index"`
	Part   int  `json:"part" gorm:"not null" validate:"required,min=1,max=4"`

	Title    string  `json:"title" gorm:"size:200"`
	Passage  *string `json:"passage" gorm:"type:text"`
	AudioURL *string `json:"audio_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TestPart) TableName() string {
	return "test_parts"
}

// BandScoreRange is one authored row of the raw-score-to-band lookup table.
// The table is per test and is never hardcoded.
type BandScoreRange struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	TestID   uint    `json:"test_id" gorm:"not null;index"`
	MinScore int     `json:"min_score" gorm:"not null" validate:"min=0"`
	Band     float64 `json:"band" gorm:"not null" validate:"min=0,max=9"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BandScoreRange) TableName() string {
	return "band_score_ranges"
}
