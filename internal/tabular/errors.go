package tabular

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned by Parse when the input holds no JSON text.
var ErrEmptyDocument = errors.New("empty file")

// ErrInvalidUTF8 is returned by Parse when the input is not UTF-8 text.
var ErrInvalidUTF8 = errors.New("encoding error: file is not valid UTF-8")

// ParseError reports input that is not valid JSON text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "invalid json: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedShapeError reports valid JSON whose top-level value is neither
// an object nor an array.
type UnsupportedShapeError struct {
	Kind string // JSON kind of the top-level value: "string", "number", "boolean", "null"
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("unsupported json shape: top-level %s cannot be converted to a table (expected object or array)", e.Kind)
}

// LimitError reports a document that is well formed but too large or too
// deeply nested to convert.
type LimitError struct {
	Limit string // "nesting depth", "column count", "column name length", "cell count"
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("document exceeds the %s limit of %d", e.Limit, e.Max)
}
