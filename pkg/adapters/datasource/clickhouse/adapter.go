package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const (
	defaultPort             = 9000
	defaultDatabase         = "default"
	defaultDialTimeout      = 5 * time.Second
	defaultMaxExecutionTime = 30 // seconds, server side
)

// Adapter reads the ClickHouse catalog (system.tables, system.columns) and
// samples rows over the native protocol.
type Adapter struct {
	conn     driver.Conn
	database string
	logger   *zap.Logger
}

var _ datasource.CatalogReader = (*Adapter)(nil)

// NewAdapter opens a ClickHouse connection. The connection is lazy; use Ping
// to verify reachability.
func NewAdapter(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (*Adapter, error) {
	opts := buildOptions(cfg)

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Adapter{
		conn:     conn,
		database: opts.Auth.Database,
		logger:   logger.Named("clickhouse"),
	}, nil
}

func buildOptions(cfg *datasource.ConnectionConfig) *clickhouse.Options {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	opts := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, strconv.Itoa(port))},
		Auth: clickhouse.Auth{
			Database: database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": defaultMaxExecutionTime,
		},
		DialTimeout: dialTimeout,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}
	return opts
}

// Ping verifies the server is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.conn.Ping(ctx)
}

// Close releases the connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// QuoteIdentifier quotes a name with backticks, escaping embedded backticks
// and backslashes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

func quoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "`", "\\`")
	return "`" + escaped + "`"
}

// ListTables returns the tables of the configured database with engine and
// row count as reported by system.tables.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	const query = `
		SELECT name, engine, total_rows
		FROM system.tables
		WHERE database = ? AND NOT is_temporary
		ORDER BY name
	`

	rows, err := a.conn.Query(ctx, query, a.database)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var (
			t         datasource.TableInfo
			totalRows *uint64
		)
		if err := rows.Scan(&t.Name, &t.Engine, &totalRows); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.TotalRows = totalRows
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// ListColumns returns the columns of a table from system.columns.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	const query = `
		SELECT name, type, position, is_in_primary_key, comment
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position
	`

	rows, err := a.conn.Query(ctx, query, a.database, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := make([]models.ColumnDescriptor, 0)
	for rows.Next() {
		var (
			name, colType, comment string
			position               uint64
			inPrimaryKey           uint8
		)
		if err := rows.Scan(&name, &colType, &position, &inPrimaryKey, &comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, models.ColumnDescriptor{
			ColumnName:      name,
			DataType:        colType,
			IsNullable:      isNullableType(colType),
			IsPrimaryKey:    inPrimaryKey == 1,
			OrdinalPosition: int(position),
			Comment:         comment,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// isNullableType reports whether a ClickHouse type admits NULL.
// LowCardinality(Nullable(T)) is nullable too.
func isNullableType(colType string) bool {
	return strings.HasPrefix(colType, "Nullable(") ||
		strings.HasPrefix(colType, "LowCardinality(Nullable(")
}

// SampleRows reads up to limit rows from the table.
func (a *Adapter) SampleRows(ctx context.Context, table string, limit int) (*datasource.QueryResult, error) {
	limit = datasource.ClampLimit(limit)
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d",
		quoteIdentifier(a.database), quoteIdentifier(table), limit)

	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	columns := rows.Columns()

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]models.Row, 0, limit),
	}

	for rows.Next() {
		dest := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}

		row := make(models.Row, len(columns))
		for i, name := range columns {
			row[name] = derefValue(dest[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return result, nil
}

// derefValue unwraps the pointer allocated for scanning. Nullable columns
// scan into **T, so a nil inner pointer becomes a nil value.
func derefValue(ptr any) any {
	v := reflect.ValueOf(ptr).Elem()
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
