package utils

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/shax201/mock-test-v1-sub003/internal/errors"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
)

// Validator wraps the struct validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with all custom rules registered.
func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate validates struct tags and converts failures to the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if converted := apperrors.ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

// Var validates a single value against a rule string.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("module_type", validateModuleType)
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("test_status", validateTestStatus)
	validate.RegisterValidation("band_score", validateBandScore)

	// Use json tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, validType := range models.AllQuestionTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateModuleType(fl validator.FieldLevel) bool {
	validTypes := []models.ModuleType{
		models.ModuleListening,
		models.ModuleReading,
		models.ModuleWriting,
		models.ModuleSpeaking,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleInstructor,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, validRole := range validRoles {
		if string(validRole) == value {
			return true
		}
	}
	return false
}

func validateTestStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.TestStatus{
		models.TestDraft,
		models.TestPublished,
		models.TestArchived,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

// Bands are 0..9 in half steps.
func validateBandScore(fl validator.FieldLevel) bool {
	value := fl.Field().Float()
	if value < 0 || value > 9 {
		return false
	}
	return math.Mod(value*2, 1) == 0
}
