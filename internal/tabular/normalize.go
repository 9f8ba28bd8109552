package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
)

// ValueColumn names the single column used for array elements that are not
// objects.
const ValueColumn = "value"

// Kind is the JSON kind of a document's top-level value.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
)

// RawDocument is validated, compacted JSON text.
type RawDocument struct {
	data []byte
	kind Kind
}

// Kind reports the kind of the top-level value.
func (d RawDocument) Kind() Kind {
	return d.kind
}

// Parse reads a JSON document from r. A leading UTF-8 BOM is ignored.
func Parse(r io.Reader) (RawDocument, error) {
	data, err := io.ReadAll(NewBOMSkippingReader(r))
	if err != nil {
		return RawDocument{}, fmt.Errorf("read document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes validates data as JSON text.
func ParseBytes(data []byte) (RawDocument, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return RawDocument{}, &ParseError{Err: ErrEmptyDocument}
	}
	if !utf8.Valid(data) {
		return RawDocument{}, &ParseError{Err: ErrInvalidUTF8}
	}
	if err := checkDepth(data, MaxDepth); err != nil {
		return RawDocument{}, &ParseError{Err: err}
	}

	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		if err == nil {
			err = errors.New("malformed document")
		}
		return RawDocument{}, &ParseError{Err: err}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return RawDocument{}, &ParseError{Err: err}
	}
	compact := buf.Bytes()

	_, dt, _, err := jsonparser.Get(compact)
	if err != nil {
		return RawDocument{}, &ParseError{Err: err}
	}
	return RawDocument{data: compact, kind: kindOf(dt)}, nil
}

// Normalize converts doc into a table. See the package documentation for the
// shape rules.
func Normalize(doc RawDocument) (*Table, error) {
	b := newTableBuilder()
	rec := newRecord()

	switch doc.kind {
	case KindObject:
		f := &flattener{out: rec}
		if err := f.object(doc.data); err != nil {
			return nil, &ParseError{Err: err}
		}
		if err := b.add(rec); err != nil {
			return nil, &ParseError{Err: err}
		}

	case KindArray:
		var elemErr error
		_, err := jsonparser.ArrayEach(doc.data, func(value []byte, dt jsonparser.ValueType, _ int, err error) {
			if elemErr != nil {
				return
			}
			if err != nil {
				elemErr = err
				return
			}
			rec.reset()
			if dt == jsonparser.Object {
				elemErr = topLevelFields(value, rec)
			} else {
				var text string
				if text, elemErr = cellText(value, dt); elemErr == nil {
					elemErr = rec.set(ValueColumn, text)
				}
			}
			if elemErr == nil {
				elemErr = b.add(rec)
			}
		})
		if err == nil {
			err = elemErr
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

	default:
		return nil, &UnsupportedShapeError{Kind: string(doc.kind)}
	}

	return b.build(), nil
}

// NormalizeBytes parses data and normalizes the result.
func NormalizeBytes(data []byte) (*Table, error) {
	doc, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return Normalize(doc)
}

// record is one flattened object: values plus keys in first-seen order.
type record struct {
	keys   []string
	values map[string]string
}

func newRecord() *record {
	return &record{values: make(map[string]string)}
}

func (r *record) reset() {
	r.keys = r.keys[:0]
	clear(r.values)
}

// set stores v under k. A repeated key keeps its first position and takes
// the latest value.
func (r *record) set(k, v string) error {
	if _, ok := r.values[k]; !ok {
		if len(r.keys) >= MaxColumns {
			return &LimitError{Limit: "column count", Max: MaxColumns}
		}
		r.keys = append(r.keys, k)
	}
	r.values[k] = v
	return nil
}

// flattener walks a JSON object, joining nested keys with ".". The key path
// is a stack that is only joined at leaves.
type flattener struct {
	path []string
	out  *record
}

func (f *flattener) object(data []byte) error {
	return jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		f.path = append(f.path, string(key))
		defer func() { f.path = f.path[:len(f.path)-1] }()

		if dt == jsonparser.Object {
			return f.object(value)
		}
		name, err := columnName(f.path)
		if err != nil {
			return err
		}
		text, err := cellText(value, dt)
		if err != nil {
			return err
		}
		return f.out.set(name, text)
	})
}

// topLevelFields stores the keys of one array element. Nested objects and
// arrays are kept as compact JSON text instead of being flattened.
func topLevelFields(data []byte, out *record) error {
	return jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		if len(key) > MaxColumnNameLen {
			return &LimitError{Limit: "column name length", Max: MaxColumnNameLen}
		}
		text, err := cellText(value, dt)
		if err != nil {
			return err
		}
		return out.set(string(key), text)
	})
}

func columnName(path []string) (string, error) {
	n := len(path) - 1
	for _, p := range path {
		n += len(p)
	}
	if n > MaxColumnNameLen {
		return "", &LimitError{Limit: "column name length", Max: MaxColumnNameLen}
	}
	return strings.Join(path, "."), nil
}

// cellText renders a scalar or array value for display.
func cellText(value []byte, dt jsonparser.ValueType) (string, error) {
	switch dt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return "", fmt.Errorf("decode string: %w", err)
		}
		return s, nil
	case jsonparser.Null:
		return "", nil
	default:
		// Numbers and booleans keep their JSON literal; arrays and objects
		// stay as compact JSON text.
		return string(value), nil
	}
}

func kindOf(dt jsonparser.ValueType) Kind {
	switch dt {
	case jsonparser.Object:
		return KindObject
	case jsonparser.Array:
		return KindArray
	case jsonparser.String:
		return KindString
	case jsonparser.Number:
		return KindNumber
	case jsonparser.Boolean:
		return KindBoolean
	default:
		return KindNull
	}
}
