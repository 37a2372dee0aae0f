package datasource

import (
	"context"
	"time"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// MaxSampleLimit is the hard cap on rows returned by SampleRows.
// Callers are expected to clamp further; adapters enforce this as a last line.
const MaxSampleLimit = 100

// CatalogReader is the read-only surface the assistant needs from a tabular
// data store: enumerate tables, enumerate columns of a table, and fetch a
// bounded number of sample rows.
//
// Implementations perform no allow-list checks; that is the caller's job.
// Each implementation owns its connection and must be closed when done.
type CatalogReader interface {
	// ListTables returns the tables of the configured database.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// ListColumns returns the columns of one table ordered by position.
	// A table that does not exist yields an empty slice.
	ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error)

	// SampleRows returns at most limit rows from the table.
	// limit is capped to MaxSampleLimit; limit <= 0 uses 1.
	SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error)

	// QuoteIdentifier safely quotes a table or column name for the dialect.
	QuoteIdentifier(name string) string

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// TableInfo is a table as reported by the store's catalog.
// Engine and TotalRows are filled in when the store reports them.
type TableInfo struct {
	Name      string  `json:"name"`
	Engine    string  `json:"engine,omitempty"`
	TotalRows *uint64 `json:"total_rows,omitempty"`
}

// QueryResult contains rows read from a table.
type QueryResult struct {
	Columns []string     `json:"columns"`
	Rows    []models.Row `json:"rows"`
}

// ConnectionConfig holds dialect-neutral connection parameters.
type ConnectionConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	Secure      bool
	SSLMode     string        // postgres only
	DialTimeout time.Duration // zero uses the adapter default
}

// ClampLimit bounds a sample limit to [1, MaxSampleLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxSampleLimit {
		return MaxSampleLimit
	}
	return limit
}
