package powerbi

import (
	"fmt"
	"strings"
)

// AuthenticationError reports that the identity provider rejected the
// client-credentials request or answered without an access token.
type AuthenticationError struct {
	StatusCode  int    // HTTP status from the token endpoint, 0 if no response
	Code        string // OAuth2 "error" field, e.g. "invalid_client"
	Description string // OAuth2 "error_description" field
	Body        string // raw response body
	Err         error
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("authentication failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	switch {
	case e.Code != "" && e.Description != "":
		fmt.Fprintf(&b, ": %s: %s", e.Code, e.Description)
	case e.Code != "":
		fmt.Fprintf(&b, ": %s", e.Code)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Detail returns the provider's explanation for display to the user.
func (e *AuthenticationError) Detail() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Body != "":
		return e.Body
	case e.Err != nil:
		return e.Err.Error()
	}
	return ""
}

// UploadError reports that the dataset endpoint did not answer 201 Created,
// or could not be reached.
type UploadError struct {
	StatusCode int    // 0 if the request never got a response
	Body       string // response body, verbatim
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		if e.Body == "" {
			return fmt.Sprintf("upload failed: HTTP %d", e.StatusCode)
		}
		return fmt.Sprintf("upload failed: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Detail returns the provider's response text for display to the user.
func (e *UploadError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
