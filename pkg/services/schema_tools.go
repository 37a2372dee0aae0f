package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
	"github.com/ekaya-inc/schema-assistant/pkg/tableformat"
)

// Tool names exposed to the completion service, the HTTP API and MCP.
const (
	ToolListTables       = "list_tables"
	ToolGetTableSchema   = "get_table_schema"
	ToolGetSampleData    = "get_sample_data"
	ToolDescribeDatabase = "describe_database"
)

type listTablesArgs struct{}

type tableSchemaArgs struct {
	TableName string `json:"table_name" jsonschema:"name of the table to describe"`
}

type sampleDataArgs struct {
	TableName string `json:"table_name" jsonschema:"name of the table to sample"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of rows to return; clamped to the configured maximum"`
}

// sampleDataInput decodes validated get_sample_data arguments. Limit is read
// as a float so integral values beyond the int range still clamp.
type sampleDataInput struct {
	TableName string   `json:"table_name"`
	Limit     *float64 `json:"limit"`
}

type describeDatabaseArgs struct{}

// argsSchema infers a closed object schema from T.
func argsSchema[T any]() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	// No properties beyond those declared.
	schema.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	return schema, nil
}

// RegisterSchemaTools registers the catalog tools backed by catalog.
// defaultSampleRows is used when get_sample_data is called without a limit.
func RegisterSchemaTools(registry ToolRegistry, catalog CatalogService, defaultSampleRows int) error {
	listSchema, err := argsSchema[listTablesArgs]()
	if err != nil {
		return fmt.Errorf("list_tables schema: %w", err)
	}
	tableSchema, err := argsSchema[tableSchemaArgs]()
	if err != nil {
		return fmt.Errorf("get_table_schema schema: %w", err)
	}
	sampleSchema, err := argsSchema[sampleDataArgs]()
	if err != nil {
		return fmt.Errorf("get_sample_data schema: %w", err)
	}
	describeSchema, err := argsSchema[describeDatabaseArgs]()
	if err != nil {
		return fmt.Errorf("describe_database schema: %w", err)
	}

	allowed := strings.Join(catalog.AllowedTables(), ", ")

	defs := []ToolDefinition{
		{
			Name:        ToolListTables,
			Description: "List all available tables with their engine and row count",
			Schema:      listSchema,
			Handler: func(ctx context.Context, _ map[string]any) (*models.ToolResult, error) {
				return listTablesTool(ctx, catalog)
			},
		},
		{
			Name:        ToolGetTableSchema,
			Description: fmt.Sprintf("Get the column structure of a table, including types, keys and inferred relationships. Available tables: %s", allowed),
			Schema:      tableSchema,
			TableArgs:   []string{"table_name"},
			Handler: func(ctx context.Context, args map[string]any) (*models.ToolResult, error) {
				in, err := decodeArgs[tableSchemaArgs](args)
				if err != nil {
					return nil, err
				}
				return tableSchemaTool(ctx, catalog, in.TableName)
			},
		},
		{
			Name: ToolGetSampleData,
			Description: fmt.Sprintf("Get sample rows from a table (default %d, max %d). Available tables: %s",
				defaultSampleRows, catalog.MaxSampleRows(), allowed),
			Schema:    sampleSchema,
			TableArgs: []string{"table_name"},
			Handler: func(ctx context.Context, args map[string]any) (*models.ToolResult, error) {
				in, err := decodeArgs[sampleDataInput](args)
				if err != nil {
					return nil, err
				}
				limit := defaultSampleRows
				if in.Limit != nil {
					limit = sampleLimit(*in.Limit, catalog.MaxSampleRows())
				}
				return sampleDataTool(ctx, catalog, in.TableName, limit)
			},
		},
		{
			Name:        ToolDescribeDatabase,
			Description: "Describe every available table with columns and relationships inferred from column names",
			Schema:      describeSchema,
			Handler: func(ctx context.Context, _ map[string]any) (*models.ToolResult, error) {
				return describeDatabaseTool(ctx, catalog)
			},
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// sampleLimit bounds a requested row count to [1, maxRows] before it is
// narrowed to an int.
func sampleLimit(requested float64, maxRows int) int {
	switch {
	case requested < 1:
		return 1
	case requested > float64(maxRows):
		return maxRows
	default:
		return int(requested)
	}
}

func listTablesTool(ctx context.Context, catalog CatalogService) (*models.ToolResult, error) {
	tables, err := catalog.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	body := make([][]string, len(tables))
	for i, t := range tables {
		rows := ""
		if t.TotalRows != nil {
			rows = fmt.Sprintf("%d", *t.TotalRows)
		}
		body[i] = []string{t.Name, t.Engine, rows}
	}

	return &models.ToolResult{
		Tool: ToolListTables,
		Text: tableformat.Grid([]string{"table", "engine", "rows"}, body),
		Data: tables,
	}, nil
}

func tableSchemaTool(ctx context.Context, catalog CatalogService, table string) (*models.ToolResult, error) {
	desc, err := catalog.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return &models.ToolResult{
		Tool: ToolGetTableSchema,
		Text: tableformat.Schema(desc),
		Data: desc,
	}, nil
}

func sampleDataTool(ctx context.Context, catalog CatalogService, table string, limit int) (*models.ToolResult, error) {
	sample, err := catalog.GetSampleRows(ctx, table, limit)
	if err != nil {
		return nil, err
	}
	return &models.ToolResult{
		Tool: ToolGetSampleData,
		Text: tableformat.Rows(sample.Columns, sample.Rows),
		Data: sample,
	}, nil
}

func describeDatabaseTool(ctx context.Context, catalog CatalogService) (*models.ToolResult, error) {
	tables, err := catalog.DescribeDatabase(ctx)
	if err != nil {
		return nil, err
	}

	sections := make([]string, len(tables))
	for i, t := range tables {
		sections[i] = tableformat.Schema(t)
	}
	text := strings.Join(sections, "\n\n")
	if len(tables) == 0 {
		text = "No tables available."
	}

	return &models.ToolResult{
		Tool: ToolDescribeDatabase,
		Text: text,
		Data: tables,
	}, nil
}
