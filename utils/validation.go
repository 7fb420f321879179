package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var messages []string
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Add appends err when it is non-nil.
func (ve *ValidationErrors) Add(err *ValidationError) {
	if err != nil {
		*ve = append(*ve, *err)
	}
}

func (ve *ValidationErrors) Addf(field, format string, args ...interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when nothing was collected, so callers can return it as an
// error directly.
func (ve ValidationErrors) OrNil() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

func (ve ValidationErrors) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error":   "Validation failed",
		"details": ve,
	}
}

func ValidateString(value, fieldName string, minLen, maxLen int, required bool) *ValidationError {
	if required && strings.TrimSpace(value) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}

	if value != "" {
		if utf8.RuneCountInString(value) < minLen {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at least %d characters", minLen)}
		}
		if utf8.RuneCountInString(value) > maxLen {
			return &ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at most %d characters", maxLen)}
		}
	}

	return nil
}

func ValidateEmail(email, fieldName string) *ValidationError {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}

	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: fieldName, Message: "is not a valid email address"}
	}

	return nil
}
