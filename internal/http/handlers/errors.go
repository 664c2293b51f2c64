package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/orchestrator"
)

// StatusFor maps an orchestrator error code to an HTTP status.
func StatusFor(code orchestrator.ErrorCode) int {
	switch code {
	case orchestrator.CodeNotFound:
		return http.StatusNotFound
	case orchestrator.CodeValidation:
		return http.StatusUnprocessableEntity
	case orchestrator.CodeBinaryNotFound, orchestrator.CodeNoPortAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// toHumaError converts service errors into problem responses that carry the
// error code so clients can branch on it.
func toHumaError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, config.ErrInvalidSettings) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	code := orchestrator.CodeOf(err)
	if code == "" {
		return huma.Error500InternalServerError("internal error", err)
	}
	return huma.NewError(StatusFor(code), err.Error(), &huma.ErrorDetail{
		Location: "code",
		Value:    string(code),
		Message:  string(code),
	})
}
