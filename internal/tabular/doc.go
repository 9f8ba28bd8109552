// Package tabular converts uploaded JSON documents into tables.
//
// A document is accepted when its top-level value is an object or an array:
//
//   - object: nested keys are flattened into dotted column names ("a.b.c")
//     and the result is a table with exactly one row.
//   - array: every element becomes one row. The top-level keys of an object
//     element become columns and nested objects inside it are kept as
//     compact JSON text; any other element is stored in a single column
//     named "value".
//
// Column order is the order in which keys are first seen in the document.
// Every row carries every column: a key that is absent from an element, or
// whose value is JSON null, is the empty string. Nested arrays are never
// expanded into extra rows; they are kept as compact JSON text.
//
// Anything else (a bare string, number, boolean or null) fails with
// [UnsupportedShapeError]. Text that is not JSON at all fails with [ParseError].
//
// Documents are bounded by [MaxDepth], [MaxColumns], [MaxColumnNameLen] and
// [MaxCells]. A document past any of them fails with a [ParseError] wrapping
// a [LimitError].
package tabular
