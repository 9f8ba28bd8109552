package powerbi

import "github.com/JonMunkholm/jsonbi/internal/tabular"

// ColumnTypeString is the data type declared for every published column.
// Values are never inspected to infer a narrower type.
const ColumnTypeString = "string"

// DatasetPayload is the request body of the dataset-creation endpoint.
type DatasetPayload struct {
	Name   string         `json:"name"`
	Tables []TablePayload `json:"tables"`
}

// TablePayload is one table inside a DatasetPayload.
type TablePayload struct {
	Name    string              `json:"name"`
	Columns []ColumnPayload     `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// ColumnPayload declares a column name and its data type.
type ColumnPayload struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// BuildPayload wraps t as a dataset holding a single table. Every row
// mapping carries every column.
func BuildPayload(datasetName, tableName string, t *tabular.Table) DatasetPayload {
	columns := make([]ColumnPayload, len(t.Columns))
	for i, col := range t.Columns {
		columns[i] = ColumnPayload{Name: col, DataType: ColumnTypeString}
	}

	return DatasetPayload{
		Name: datasetName,
		Tables: []TablePayload{{
			Name:    tableName,
			Columns: columns,
			Rows:    t.RowMaps(),
		}},
	}
}
