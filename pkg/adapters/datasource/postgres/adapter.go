package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "require"
)

// Adapter reads the PostgreSQL catalog for the connection's current schema.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ datasource.CatalogReader = (*Adapter)(nil)

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, #
// or ? don't break parsing.
func buildConnectionString(cfg *datasource.ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// NewAdapter creates a pooled PostgreSQL adapter.
func NewAdapter(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{
		pool:   pool,
		logger: logger.Named("postgres"),
	}, nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ListTables returns base tables of current_schema() with the planner's
// row estimate.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	const query = `
		SELECT
			t.table_name,
			'heap' AS engine,
			GREATEST(c.reltuples, 0)::bigint AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema = current_schema()
		ORDER BY t.table_name
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var (
			t        datasource.TableInfo
			rowCount *int64
		)
		if err := rows.Scan(&t.Name, &t.Engine, &rowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if rowCount != nil {
			n := uint64(*rowCount)
			t.TotalRows = &n
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// ListColumns returns columns for a table. Primary keys come from pg_index so
// keys created as unique indexes by ORMs are still detected.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			c.ordinal_position,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '') AS comment
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary
			  AND n.nspname = current_schema()
			  AND t.relname = $1
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]models.ColumnDescriptor, 0)
	for rows.Next() {
		var c models.ColumnDescriptor
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.OrdinalPosition, &c.Comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows reads up to limit rows from the table.
func (a *Adapter) SampleRows(ctx context.Context, table string, limit int) (*datasource.QueryResult, error) {
	limit = datasource.ClampLimit(limit)
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", a.QuoteIdentifier(table), limit)

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]models.Row, 0, limit),
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read sample row: %w", err)
		}
		row := make(models.Row, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return result, nil
}
