package ai

import (
	"context"

	"github.com/benvon/soonish/internal/logger"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	conversationIDContextKey contextKey = "conversation_id"
	requestIDContextKey      contextKey = "request_id"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// WithRequestID returns a context carrying the HTTP request id for LLM logs
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// WithConversationID returns a context carrying the conversation id for LLM logs
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDContextKey, id)
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// ExtractConversationID extracts a conversation ID from context if available
func ExtractConversationID(ctx context.Context) string {
	if id, ok := ctx.Value(conversationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizeContent creates a safe preview of a prompt or response for logging.
// Even in fullLog mode the content is cleaned to prevent log injection.
func SanitizeContent(content string, fullLog bool) string {
	if fullLog {
		return logger.SanitizeDebugContent(content)
	}
	return logger.SanitizeString(content, MaxPreviewLength)
}
