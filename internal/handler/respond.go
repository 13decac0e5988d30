package handler

import (
	"encoding/json"
	"net/http"

	"portfolio-api/pkg/errors"
	"portfolio-api/pkg/logger"
)

// sendJSON writes a JSON response with the given status
func sendJSON(w http.ResponseWriter, log *logger.Logger, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// sendAppError writes the standard error envelope for an AppError
func sendAppError(w http.ResponseWriter, log *logger.Logger, appErr *errors.AppError) {
	if appErr.Internal != nil {
		log.WithError(appErr.Internal).WithField("type", string(appErr.Type)).Error(appErr.Message)
	}

	response := errors.NewErrorResponse(appErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Error("Failed to encode error response")
	}
}
