package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func NewAPIErrorWithDetails(code int, message, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrInvalidRequest     = NewAPIError(http.StatusBadRequest, "Invalid request")
	ErrUnauthorized       = NewAPIError(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden          = NewAPIError(http.StatusForbidden, "Forbidden")
	ErrNotFound           = NewAPIError(http.StatusNotFound, "Resource not found")
	ErrConflict           = NewAPIError(http.StatusConflict, "Resource conflict")
	ErrTooManyRequests    = NewAPIError(http.StatusTooManyRequests, "Too many requests")
	ErrInternalServer     = NewAPIError(http.StatusInternalServerError, "Internal server error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Service unavailable")
)

var (
	ErrClientNotFound      = NewAPIError(http.StatusNotFound, "Client not found")
	ErrInvoiceNotFound     = NewAPIError(http.StatusNotFound, "Invoice not found")
	ErrClientHasInvoices   = NewAPIError(http.StatusConflict, "Client has invoices and cannot be deleted")
	ErrInvoiceNumberTaken  = NewAPIError(http.StatusConflict, "Invoice number already in use")
	ErrInvoiceLocked       = NewAPIError(http.StatusConflict, "Invoice can no longer be edited")
	ErrInvoiceNotPayable   = NewAPIError(http.StatusConflict, "This invoice cannot be paid.")
	ErrInvalidAmount       = NewAPIError(http.StatusBadRequest, "Invalid amount")
	ErrRateLimitExceeded   = NewAPIError(http.StatusTooManyRequests, "Rate limit exceeded")
	ErrInvalidToken        = NewAPIError(http.StatusUnauthorized, "Invalid token")
	ErrTokenExpired        = NewAPIError(http.StatusUnauthorized, "Token expired")
	ErrNotificationDropped = NewAPIError(http.StatusServiceUnavailable, "Notification queue is full")
)

var (
	ErrProviderUnavailable = NewAPIError(http.StatusServiceUnavailable, "Payment provider unavailable")
	ErrProviderError       = NewAPIError(http.StatusBadGateway, "Payment provider error")
)

var (
	ErrDatabaseConnection  = NewAPIError(http.StatusServiceUnavailable, "Database connection failed")
	ErrDatabaseTransaction = NewAPIError(http.StatusInternalServerError, "Database transaction failed")
)

var (
	ErrWebhookInvalidSignature = NewAPIError(http.StatusBadRequest, "Invalid webhook signature")
	ErrWebhookInvalidPayload   = NewAPIError(http.StatusBadRequest, "Invalid webhook payload")
	ErrWebhookProcessingFailed = NewAPIError(http.StatusInternalServerError, "Webhook processing failed")
)

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

func WrapAPIError(err error, apiErr *APIError) error {
	return fmt.Errorf("%w: %v", apiErr, err)
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errorStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"service unavailable",
		"gateway timeout",
		"too many requests",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errorStr, retryableErr) {
			return true
		}
	}

	return false
}

func GetHTTPStatusFromError(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var validationErrs ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest
	}

	errorStr := strings.ToLower(err.Error())
	if strings.Contains(errorStr, "not found") {
		return http.StatusNotFound
	}
	if strings.Contains(errorStr, "timeout") {
		return http.StatusGatewayTimeout
	}
	if strings.Contains(errorStr, "rate limit") {
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

func LogError(ctx context.Context, err error, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	fields["error"] = err.Error()

	Error(ctx, message, fields)
}
