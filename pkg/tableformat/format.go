// Package tableformat renders catalog data as fixed-width text tables for
// model prompts and direct display.
package tableformat

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const (
	// MaxCellWidth caps every rendered cell, header cells included.
	MaxCellWidth = 50

	// NoRowsMarker is rendered below the header when a result has no rows.
	NoRowsMarker = "(no rows)"

	nullValue = "NULL"
)

// Rows renders rows under the given column headers. Rows are read by column
// name so map ordering never leaks into the output.
func Rows(columns []string, rows []models.Row) string {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = Cell(row[col])
		}
		cells = append(cells, line)
	}
	return Grid(columns, cells)
}

// Grid renders pre-stringified cells under header. An empty body renders the
// header followed by NoRowsMarker.
func Grid(header []string, body [][]string) string {
	var sb strings.Builder

	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(true)

	h := make([]string, len(header))
	for i, name := range header {
		h[i] = truncate(name)
	}
	table.SetHeader(h)

	for _, line := range body {
		row := make([]string, len(header))
		for i := range row {
			if i < len(line) {
				row[i] = truncate(line[i])
			}
		}
		table.Append(row)
	}

	table.Render()

	out := strings.TrimRight(sb.String(), "\n")
	if len(body) == 0 {
		out += "\n" + NoRowsMarker
	}
	return out
}

// Schema renders a table descriptor transposed: the header row holds the
// table's column names and each following row describes one attribute
// (type, nullability, key) across all columns. Engine, row count and
// inferred relationships follow the grid when known.
func Schema(t *models.TableDescriptor) string {
	header := t.ColumnNames()

	types := make([]string, len(t.Columns))
	nullability := make([]string, len(t.Columns))
	keys := make([]string, len(t.Columns))
	hasComments := false
	comments := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		types[i] = col.DataType
		if col.IsNullable {
			nullability[i] = "nullable"
		} else {
			nullability[i] = "not null"
		}
		if col.IsPrimaryKey {
			keys[i] = "primary"
		}
		if col.Comment != "" {
			hasComments = true
			comments[i] = col.Comment
		}
	}

	body := [][]string{types, nullability, keys}
	if hasComments {
		body = append(body, comments)
	}

	var sb strings.Builder
	sb.WriteString(Grid(header, body))

	if t.Engine != "" || t.TotalRows != nil {
		sb.WriteString("\n\n")
		sb.WriteString(tableSummary(t))
	}

	if len(t.Relationships) > 0 {
		sb.WriteString("\n\nRelationships:")
		for _, rel := range t.Relationships {
			sb.WriteString("\n  ")
			sb.WriteString(rel.String())
		}
	}

	return sb.String()
}

func tableSummary(t *models.TableDescriptor) string {
	parts := []string{"Table: " + t.TableName}
	if t.Engine != "" {
		parts = append(parts, "Engine: "+t.Engine)
	}
	if t.TotalRows != nil {
		parts = append(parts, fmt.Sprintf("Rows: %d", *t.TotalRows))
	}
	return strings.Join(parts, "  ")
}

// Cell coerces a value to its textual representation.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return nullValue
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nullValue
		}
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string) string {
	// Newlines would break the fixed-width layout.
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= MaxCellWidth {
		return s
	}
	return string(r[:MaxCellWidth])
}
