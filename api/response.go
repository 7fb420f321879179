package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/utils"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ErrorResponse struct {
	Error     string                  `json:"error"`
	Status    int                     `json:"status"`
	Details   []utils.ValidationError `json:"details,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Status: status, Timestamp: time.Now().UTC()})
}

// writeError maps a service error to its HTTP status. Server-side failures are
// logged and their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Timestamp: time.Now().UTC()}

	var validationErrs utils.ValidationErrors
	var transitionErr *models.TransitionError
	var lockedErr *models.LockedError
	var apiErr *utils.APIError
	switch {
	case errors.As(err, &validationErrs):
		resp.Status = http.StatusBadRequest
		resp.Error = "Validation failed"
		resp.Details = validationErrs
	case errors.As(err, &transitionErr):
		resp.Status = http.StatusConflict
		resp.Error = transitionErr.Error()
	case errors.As(err, &lockedErr):
		resp.Status = http.StatusConflict
		resp.Error = lockedErr.Error()
	case errors.As(err, &apiErr):
		resp.Status = apiErr.Code
		resp.Error = apiErr.Message
	default:
		resp.Status = utils.GetHTTPStatusFromError(err)
		resp.Error = http.StatusText(resp.Status)
	}

	if resp.Status >= http.StatusInternalServerError {
		utils.LogError(r.Context(), err, "Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}

	writeJSON(w, resp.Status, resp)
}

// decodeJSON reads the request body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// pagination reads limit and offset from the query string. Unparsable values
// fall back to the defaults.
func pagination(r *http.Request) (int, int) {
	limit, offset := defaultPageLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o > 0 {
			offset = o
		}
	}
	return clampLimit(limit), offset
}
