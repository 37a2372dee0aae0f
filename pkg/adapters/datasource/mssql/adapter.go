package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const (
	defaultPort   = 1433
	defaultSchema = "dbo"
)

// Adapter reads the SQL Server catalog of the dbo schema using SQL
// authentication.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.CatalogReader = (*Adapter)(nil)

// buildConnectionString builds a sqlserver:// URL for SQL authentication.
func buildConnectionString(cfg *datasource.ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Secure {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.DialTimeout > 0 {
		query.Add("dial timeout", strconv.Itoa(int(cfg.DialTimeout.Seconds())))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// NewAdapter opens a SQL Server connection pool.
func NewAdapter(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	return &Adapter{
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// QuoteIdentifier mirrors QUOTENAME: square brackets with ] doubled.
func (a *Adapter) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ListTables returns dbo base tables with row counts from sys.partitions.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	const query = `
		SELECT
			t.TABLE_NAME,
			CAST(COALESCE(SUM(p.rows), 0) AS BIGINT) AS row_count
		FROM INFORMATION_SCHEMA.TABLES t
		LEFT JOIN sys.tables st ON st.name = t.TABLE_NAME AND SCHEMA_NAME(st.schema_id) = t.TABLE_SCHEMA
		LEFT JOIN sys.partitions p ON p.object_id = st.object_id AND p.index_id IN (0, 1)
		WHERE t.TABLE_TYPE = 'BASE TABLE' AND t.TABLE_SCHEMA = @p1
		GROUP BY t.TABLE_NAME
		ORDER BY t.TABLE_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var (
			name     string
			rowCount int64
		)
		if err := rows.Scan(&name, &rowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		n := uint64(rowCount)
		tables = append(tables, datasource.TableInfo{Name: name, Engine: "rowstore", TotalRows: &n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// ListColumns returns the columns of a dbo table.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	const query = `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS is_nullable,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
			c.ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT ku.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
				ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, defaultSchema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]models.ColumnDescriptor, 0)
	for rows.Next() {
		var (
			c                models.ColumnDescriptor
			isNullable, isPK int
		)
		if err := rows.Scan(&c.ColumnName, &c.DataType, &isNullable, &isPK, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.IsNullable = isNullable == 1
		c.IsPrimaryKey = isPK == 1
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows reads up to limit rows using TOP.
func (a *Adapter) SampleRows(ctx context.Context, table string, limit int) (*datasource.QueryResult, error) {
	limit = datasource.ClampLimit(limit)
	query := fmt.Sprintf("SELECT TOP (@p1) * FROM %s.%s",
		a.QuoteIdentifier(defaultSchema), a.QuoteIdentifier(table))

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]models.Row, 0, limit),
	}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}

		row := make(models.Row, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return result, nil
}

// normalizeValue converts driver byte slices (varchar, decimal) to strings.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
