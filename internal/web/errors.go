package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - mapped through core.MapError to a user message with a support code
//   - logged once with the technical error and the request id
//   - rendered as JSON for API clients and as an HTML page otherwise
//
// Handlers call respondError(w, r, err, 0) to let statusFor pick the code,
// or pass an explicit status when they know better.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/jsonbi/internal/core"
	"github.com/JonMunkholm/jsonbi/internal/logging"
	"github.com/JonMunkholm/jsonbi/internal/powerbi"
	"github.com/JonMunkholm/jsonbi/internal/tabular"
	"github.com/JonMunkholm/jsonbi/internal/web/views"
)

// ErrorResponse is the JSON body of API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		parseErr  *tabular.ParseError
		limitErr  *tabular.LimitError
		shapeErr  *tabular.UnsupportedShapeError
		authErr   *powerbi.AuthenticationError
		uploadErr *powerbi.UploadError
		maxBytes  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &shapeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPublishInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyPublishes):
		return http.StatusServiceUnavailable
	case errors.As(err, &authErr), errors.As(err, &uploadErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message. A zero
// statusCode lets statusFor decide.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := logRequestError(r, err, statusCode)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	renderHTML(w, statusCode, views.ErrorPage(statusCode, userMsg))
}

// logRequestError logs err with request context and returns its user message.
// Server errors and errors without a catalogue entry log at error level,
// other client errors at warn.
func logRequestError(r *http.Request, err error, statusCode int) core.UserMessage {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}
	return userMsg
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  msg.Detail,
	})
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
