package tabular

// Limits on the work a single document can cause. Exceeding one fails the
// document with a *LimitError wrapped in a *ParseError.
const (
	// MaxDepth is the deepest nesting of objects and arrays accepted.
	MaxDepth = 64
	// MaxColumns caps the distinct columns of a table.
	MaxColumns = 4096
	// MaxColumnNameLen caps a flattened column name, in bytes.
	MaxColumnNameLen = 1024
	// MaxCells caps rows times columns.
	MaxCells = 2_000_000
)

// checkDepth scans data once and fails when objects and arrays nest deeper
// than max. Brackets inside strings are skipped; anything malformed is left
// for the JSON validator to report.
func checkDepth(data []byte, max int) error {
	depth := 0
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > max {
				return &LimitError{Limit: "nesting depth", Max: max}
			}
		case '}', ']':
			depth--
		}
	}
	return nil
}
