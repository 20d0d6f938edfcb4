package service

import (
	"context"

	"feedsync/internal/constants"
)

// ContextKey is a package-local type to prevent context key collisions
// See staticcheck SA1029 guidance
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// MaskContent truncates feedback text for log output. The messages are
// anonymous submissions and their full content does not belong in logs.
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	if len(content) > constants.DefaultContentPreviewLength {
		return content[:constants.DefaultContentPreviewLength] + "..."
	}
	return content
}

// SanitizeMessageID shortens message ids for log output.
func SanitizeMessageID(msgID string) string {
	if msgID == "" {
		return ""
	}
	if len(msgID) > constants.DefaultMessageIDLogLength {
		return msgID[:constants.DefaultMessageIDLogLength] + "..."
	}
	return msgID
}
