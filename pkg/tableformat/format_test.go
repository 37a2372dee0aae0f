package tableformat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// cells splits a rendered line on the column separator and trims padding.
func cells(line string) []string {
	parts := strings.Split(line, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func lines(s string) []string {
	return strings.Split(s, "\n")
}

func TestSchema_HeaderIsColumnNames(t *testing.T) {
	orders := &models.TableDescriptor{
		TableName: "orders",
		Columns: []models.ColumnDescriptor{
			{ColumnName: "order_id", DataType: "UInt32", IsPrimaryKey: true, OrdinalPosition: 1},
			{ColumnName: "user_id", DataType: "UInt32", OrdinalPosition: 2},
			{ColumnName: "status", DataType: "Enum8('pending' = 1, 'shipped' = 2)", OrdinalPosition: 3},
		},
	}

	out := Schema(orders)
	ls := lines(out)
	require.GreaterOrEqual(t, len(ls), 5)

	assert.Equal(t, []string{"order_id", "user_id", "status"}, cells(ls[0]))
	// ls[1] is the header rule
	assert.Equal(t, []string{"UInt32", "UInt32", "Enum8('pending' = 1, 'shipped' = 2)"}, cells(ls[2]))
	assert.Equal(t, []string{"not null", "not null", "not null"}, cells(ls[3]))
	assert.Equal(t, []string{"primary", "", ""}, cells(ls[4]))
}

func TestSchema_SummaryAndRelationships(t *testing.T) {
	rows := uint64(1200)
	orders := &models.TableDescriptor{
		TableName: "orders",
		Engine:    "MergeTree",
		TotalRows: &rows,
		Columns: []models.ColumnDescriptor{
			{ColumnName: "order_id", DataType: "UInt32"},
			{ColumnName: "user_id", DataType: "Nullable(UInt32)", IsNullable: true, Comment: "buyer"},
		},
		Relationships: []models.Relationship{
			{SourceTable: "orders", SourceColumn: "user_id", TargetTable: "users", TargetColumn: "user_id"},
		},
	}

	out := Schema(orders)

	assert.Contains(t, out, "Table: orders  Engine: MergeTree  Rows: 1200")
	assert.Contains(t, out, "Relationships:\n  orders.user_id → users.user_id")
	assert.Contains(t, out, "buyer")
	assert.Contains(t, out, "nullable")
}

func TestRows_ColumnsSizedToWidestValue(t *testing.T) {
	out := Rows([]string{"id", "name"}, []models.Row{
		{"id": uint32(1), "name": "a much longer name"},
		{"id": uint32(22), "name": nil},
	})

	ls := lines(out)
	require.Len(t, ls, 4)

	// Every line has the same width and the separator in the same place.
	sep := strings.Index(ls[0], "|")
	require.Positive(t, sep)
	assert.Equal(t, sep, strings.Index(ls[2], "|"))
	assert.Equal(t, sep, strings.Index(ls[3], "|"))

	assert.Equal(t, []string{"id", "name"}, cells(ls[0]))
	assert.Equal(t, []string{"1", "a much longer name"}, cells(ls[2]))
	assert.Equal(t, []string{"22", "NULL"}, cells(ls[3]))
}

func TestRows_EmptyRendersHeaderAndMarker(t *testing.T) {
	out := Rows([]string{"id", "name"}, nil)

	require.NotEmpty(t, out)
	ls := lines(out)
	assert.Equal(t, []string{"id", "name"}, cells(ls[0]))
	assert.Equal(t, NoRowsMarker, ls[len(ls)-1])
}

func TestGrid_TruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", 80)
	out := Grid([]string{"v"}, [][]string{{long}})

	assert.NotContains(t, out, long)
	assert.Contains(t, out, strings.Repeat("x", MaxCellWidth))
}

func TestGrid_ShortRowsArePadded(t *testing.T) {
	out := Grid([]string{"a", "b"}, [][]string{{"1"}})
	ls := lines(out)
	assert.Equal(t, []string{"1", ""}, cells(ls[2]))
}

func TestCell(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var nilTime *time.Time

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"string", "hi", "hi"},
		{"bytes", []byte("raw"), "raw"},
		{"uint", uint64(42), "42"},
		{"float", 12.5, "12.5"},
		{"bool", true, "true"},
		{"time", ts, "2024-03-01T12:00:00Z"},
		{"nil time pointer", nilTime, "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cell(tt.in))
		})
	}
}
