package handlers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	playgroundValidator "github.com/go-playground/validator/v10"

	appErrors "github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
	appValidator "github.com/dfe0990ngc/pcds-student-portal/pkg/validator"
)

var registerRulesOnce sync.Once

// registerCustomRules installs the portal-specific validation tags. Student
// numbers are alphanumeric but allow spaces, dashes, and underscores, matching
// registrar formats like "2021-00001".
func registerCustomRules() {
	registerRulesOnce.Do(func() {
		_ = appValidator.RegisterValidation("studentnumber", func(fl playgroundValidator.FieldLevel) bool {
			value := fl.Field().String()
			if value == "" {
				return false
			}
			for _, r := range value {
				switch {
				case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				case r == ' ', r == '-', r == '_':
				default:
					return false
				}
			}
			return true
		})

		_ = appValidator.RegisterValidation("calendardate", func(fl playgroundValidator.FieldLevel) bool {
			_, err := time.Parse("2006-01-02", fl.Field().String())
			return err == nil
		})
	})
}

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When validation fails, a 422 response is written and false returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	registerCustomRules()

	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("Invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		first, all := formatValidationErrors(err)
		response.ErrorWithExtra(c, appErrors.NewValidation(first), gin.H{"errors": all})
		return false
	}

	return true
}

// formatValidationErrors renders field failures as client-facing messages and
// returns the first one as the response message.
func formatValidationErrors(err error) (string, map[string][]string) {
	fallback := "Request validation failed"

	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return fallback, nil
	}

	all := make(map[string][]string, len(ve))
	first := ""
	for _, failure := range ve {
		msg := messageFor(failure)
		all[failure.Field] = append(all[failure.Field], msg)
		if first == "" {
			first = msg
		}
	}
	return first, all
}

func messageFor(failure appValidator.ValidationError) string {
	field := failure.Field
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, failure.Param)
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, lowerFirst(failure.Param))
	case "studentnumber":
		return fmt.Sprintf("%s must contain only letters and numbers", field)
	case "calendardate":
		return fmt.Sprintf("%s must be a valid date", field)
	default:
		if failure.Param != "" {
			return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
		}
		return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
	}
}

// lowerFirst maps a struct field name like "Password" onto its json form.
func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}
