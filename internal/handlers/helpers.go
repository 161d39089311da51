package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/database"
	logpkg "github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
	"github.com/benvon/soonish/internal/services/ai"
)

const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSONError sends an error JSON response with a bounded message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   logpkg.SanitizeString(message, maxErrorMessageLength),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps a domain error onto its HTTP status. Unrecognised
// errors are logged and reported as 500 with fallback as the message.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var extractionErr *ai.ExtractionError
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, ai.ErrEmptyMessage):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, planner.ErrInvalidPresetReference):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, database.ErrPlanNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Plan not found")
	case errors.Is(err, ai.ErrConversationNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
	case errors.Is(err, ai.ErrTurnInFlight), errors.Is(err, ai.ErrNoPendingSuggestion):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &extractionErr):
		if ai.IsRateLimitError(err) || ai.IsQuotaError(err) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(ai.GetRetryDelay(err, 0).Seconds())))
		}
		logger.Warn("conversation_turn_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The assistant could not answer, please try again")
	case errors.Is(err, context.DeadlineExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The request took too long")
	default:
		logger.Error("request_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", fallback)
	}
}

// decodeJSON reads the request body into dst, answering 400/413 itself on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
