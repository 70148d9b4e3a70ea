package errors

import (
	stderrors "errors"
	"net/http"
)

// Response renders err as the JSON error envelope returned by every handler
func Response(err error) map[string]interface{} {
	var enhanced *EnhancedError
	if !stderrors.As(err, &enhanced) {
		return map[string]interface{}{
			"error": map[string]interface{}{
				"code":    ErrCodeInternal,
				"message": err.Error(),
			},
		}
	}

	body := map[string]interface{}{
		"code":    enhanced.Code,
		"message": enhanced.Message,
	}
	if enhanced.Details != "" {
		body["details"] = enhanced.Details
	}
	if enhanced.Suggestion != "" {
		body["suggestion"] = enhanced.Suggestion
	}
	if enhanced.Documentation != "" {
		body["documentation"] = enhanced.Documentation
	}
	if len(enhanced.Metadata) > 0 {
		body["metadata"] = enhanced.Metadata
	}
	return map[string]interface{}{"error": body}
}

// HTTPStatus returns the status code for err
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeInvalidInput, ErrCodeMissingRequired:
		return http.StatusBadRequest
	case ErrCodeInvalidCredentials, ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case ErrCodeInsufficientPerms:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeBackendUnavailable, ErrCodeDatabaseConnection, ErrCodeHistoryRead:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
