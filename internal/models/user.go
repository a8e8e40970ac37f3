package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleAdmin      UserRole = "admin"
)

type User struct {
	ID    uint     `json:"id" gorm:"primaryKey"`
	Name  string   `json:"name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Email string   `json:"email" gorm:"not null;uniqueIndex;size:255" validate:"required,email"`
	Role  UserRole `json:"role" gorm:"not null;default:student;index" validate:"omitempty,user_role"`

	// Subject claim from the auth provider token
	ExternalID string `json:"external_id" gorm:"uniqueIndex;size:100"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
