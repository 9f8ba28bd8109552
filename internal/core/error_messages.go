package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Users quote the code; support staff look it up here.
//
// # JSON Errors (JSON001-JSON099)
//
//	JSON001 - Invalid JSON: The file is not valid JSON
//	          Action: Check the file for syntax errors such as missing quotes or commas
//	          Matches: *tabular.ParseError
//
//	JSON002 - Unsupported shape: The JSON cannot be converted to a table
//	          Action: Upload a JSON object or an array of objects
//	          Matches: *tabular.UnsupportedShapeError
//
//	JSON003 - Empty file: The uploaded file contains no JSON
//	          Action: Upload a file with a JSON object or array
//	          Matches: tabular.ErrEmptyDocument, "empty file"
//
//	JSON004 - Too large: The JSON is too deeply nested or has too many columns
//	          Action: Flatten the structure or split the file
//	          Matches: *tabular.LimitError
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Matches: ErrFileTooLarge, "file too large"
//
//	FILE002 - Wrong file type: Only .json files are accepted
//	          Matches: ErrUnsupportedFileType
//
//	FILE003 - Encoding error: File is not UTF-8 text
//	          Matches: tabular.ErrInvalidUTF8, "encoding error"
//
//	FILE004 - No file: No file was selected
//	          Matches: ErrNoFile, "no file provided"
//
// # Publish Errors (AUTH001, PUB001-PUB099)
//
//	AUTH001 - Authentication failed: The identity provider rejected the credentials
//	          Action: Check the tenant, client id and client secret
//	          Matches: *powerbi.AuthenticationError
//
//	PUB001  - Upload failed: The dataset service did not create the dataset
//	          Action: Review the service response below and try again
//	          Matches: *powerbi.UploadError
//
//	PUB002  - System busy: Too many publishes in progress
//	          Matches: ErrTooManyPublishes, "too many publishes"
//
//	PUB003  - Already publishing: Another request is publishing the same file
//	          Matches: ErrPublishInProgress, "publish in progress"
//
// # Session and Request Errors
//
//	SES001  - Session expired: The converted table is no longer available
//	          Matches: ErrSessionNotFound, "session not found"
//
//	UPL004  - Request cancelled          Matches: context.Canceled
//	UPL005  - Request timed out          Matches: context.DeadlineExceeded
//	RATE001 - Too many requests          Matches: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the logs for
// the original error when a user reports ERR000.
//
// # Matching
//
// Typed and sentinel errors are checked first with errors.As / errors.Is,
// in catalogue order. Plain errors then fall back to case-insensitive
// substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/jsonbi/internal/powerbi"
	"github.com/JonMunkholm/jsonbi/internal/tabular"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Detail  string // Provider or parser text, shown verbatim
}

var (
	msgInvalidJSON = UserMessage{
		Message: "The file is not valid JSON",
		Action:  "Check the file for syntax errors such as missing quotes or commas",
		Code:    "JSON001",
	}
	msgUnsupportedShape = UserMessage{
		Message: "The JSON format cannot be converted to a table",
		Action:  "Upload a JSON object or an array of objects",
		Code:    "JSON002",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a JSON object or array",
		Code:    "JSON003",
	}
	msgDocumentLimit = UserMessage{
		Message: "The JSON is too deeply nested or too wide to convert",
		Action:  "Flatten the structure or split the file",
		Code:    "JSON004",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Reduce the file size or split it into smaller files",
		Code:    "FILE001",
	}
	msgWrongFileType = UserMessage{
		Message: "Only .json files are accepted",
		Action:  "Select a file with the .json extension",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Select a JSON file to upload",
		Code:    "FILE004",
	}
	msgAuthFailed = UserMessage{
		Message: "Authentication with Power BI failed",
		Action:  "Check the tenant, client id and client secret",
		Code:    "AUTH001",
	}
	msgUploadFailed = UserMessage{
		Message: "Power BI did not create the dataset",
		Action:  "Review the service response and try again",
		Code:    "PUB001",
	}
	msgTooManyPublishes = UserMessage{
		Message: "System is busy publishing other datasets",
		Action:  "Please wait a moment and try again",
		Code:    "PUB002",
	}
	msgPublishInProgress = UserMessage{
		Message: "This file is already being published",
		Action:  "Wait for the current upload to finish",
		Code:    "PUB003",
	}
	msgSessionNotFound = UserMessage{
		Message: "The converted data is no longer available",
		Action:  "The session may have expired. Please upload the file again",
		Code:    "SES001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Check your connection and try again",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// errorPattern maps a substring of a plain error to a user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted for untyped errors. Order matters: specific
// before general.
var errorPatterns = []errorPattern{
	{"file too large", msgFileTooLarge},
	{"encoding error", msgEncoding},
	{"empty file", msgEmptyFile},
	{"no file provided", msgNoFile},
	{"too many publishes", msgTooManyPublishes},
	{"publish in progress", msgPublishInProgress},
	{"session not found", msgSessionNotFound},
	{"authentication failed", msgAuthFailed},
	{"upload failed", msgUploadFailed},
	{"invalid json", msgInvalidJSON},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
	{"rate limit", msgRateLimited},
}

// MapError converts a technical error to a user-friendly message. Typed
// errors are matched first; the provider or parser text is copied into
// Detail. If nothing matches the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(&powerbi.UploadError{StatusCode: 403, Body: "Forbidden"})
//	// msg.Code == "PUB001"
//	// msg.Detail == "HTTP 403: Forbidden"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		authErr   *powerbi.AuthenticationError
		uploadErr *powerbi.UploadError
		shapeErr  *tabular.UnsupportedShapeError
		parseErr  *tabular.ParseError
		limitErr  *tabular.LimitError
	)

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrUnsupportedFileType):
		return msgWrongFileType
	case errors.Is(err, ErrNoFile):
		return msgNoFile
	case errors.Is(err, tabular.ErrEmptyDocument):
		return msgEmptyFile
	case errors.Is(err, tabular.ErrInvalidUTF8):
		return msgEncoding
	case errors.As(err, &limitErr):
		return withDetail(msgDocumentLimit, limitErr.Error())
	case errors.As(err, &parseErr):
		return withDetail(msgInvalidJSON, parseErr.Err.Error())
	case errors.As(err, &shapeErr):
		return withDetail(msgUnsupportedShape, shapeErr.Error())
	case errors.As(err, &authErr):
		return withDetail(msgAuthFailed, authErr.Detail())
	case errors.As(err, &uploadErr):
		return withDetail(msgUploadFailed, uploadDetail(uploadErr))
	case errors.Is(err, ErrTooManyPublishes):
		return msgTooManyPublishes
	case errors.Is(err, ErrPublishInProgress):
		return msgPublishInProgress
	case errors.Is(err, ErrSessionNotFound):
		return msgSessionNotFound
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func withDetail(msg UserMessage, detail string) UserMessage {
	msg.Detail = detail
	return msg
}

// uploadDetail prefixes the provider body with its HTTP status.
func uploadDetail(e *powerbi.UploadError) string {
	if e.StatusCode == 0 {
		return e.Detail()
	}
	if d := e.Detail(); d != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, d)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action" followed by ": Detail" when
// the error carries provider text.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	s := fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
	if msg.Detail != "" {
		s += ": " + msg.Detail
	}
	return s
}

// IsUserFacing reports whether err maps to a specific catalogue entry
// rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
