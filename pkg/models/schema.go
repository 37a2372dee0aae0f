package models

// TableDescriptor describes one table of the tabular data store as seen by a
// single request. Columns are ordered by ordinal position.
type TableDescriptor struct {
	TableName     string             `json:"table_name"`
	Engine        string             `json:"engine,omitempty"`
	TotalRows     *uint64            `json:"total_rows,omitempty"`
	Columns       []ColumnDescriptor `json:"columns"`
	Relationships []Relationship     `json:"relationships,omitempty"` // inferred, never authoritative
}

// ColumnNames returns the table's column names in ordinal order.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.ColumnName
	}
	return names
}

// HasColumn reports whether the table has a column with the given name.
func (t *TableDescriptor) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.ColumnName == name {
			return true
		}
	}
	return false
}

// ColumnDescriptor describes a single column. DataType is taken verbatim from
// the store's type system (e.g. "UInt32", "Nullable(String)", "integer").
type ColumnDescriptor struct {
	ColumnName      string `json:"column_name"`
	DataType        string `json:"data_type"`
	IsNullable      bool   `json:"is_nullable"`
	IsPrimaryKey    bool   `json:"is_primary_key"`
	OrdinalPosition int    `json:"ordinal_position"`
	Comment         string `json:"comment,omitempty"`
}

// Relationship is a foreign-key relationship inferred from column naming.
// The target column is assumed to be the target table's key.
type Relationship struct {
	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

// String renders the relationship as "orders.user_id → users.id".
func (r Relationship) String() string {
	return r.SourceTable + "." + r.SourceColumn + " → " + r.TargetTable + "." + r.TargetColumn
}

// Row is a single result row keyed by column name.
type Row map[string]any

// SampleData holds a bounded set of rows read from one table.
type SampleData struct {
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	Limit     int      `json:"limit"`
}
