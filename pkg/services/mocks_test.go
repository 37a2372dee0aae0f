package services

import (
	"context"
	"sync/atomic"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// mockCatalogReader implements datasource.CatalogReader over in-memory tables.
type mockCatalogReader struct {
	tables  []datasource.TableInfo
	columns map[string][]models.ColumnDescriptor
	rows    map[string][]models.Row

	listErr    error
	columnsErr error
	sampleErr  error
	pingErr    error

	// ignoreLimit returns every row regardless of the requested limit.
	ignoreLimit bool

	// hang makes catalog queries wait until ctx is done, like a store that
	// accepted the connection and never answered.
	hang bool

	listCalls    atomic.Int32
	columnsCalls atomic.Int32
	sampleCalls  atomic.Int32
	lastLimit    atomic.Int32
}

var _ datasource.CatalogReader = (*mockCatalogReader)(nil)

func (m *mockCatalogReader) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	m.listCalls.Add(1)
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tables, nil
}

func (m *mockCatalogReader) ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	m.columnsCalls.Add(1)
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.columnsErr != nil {
		return nil, m.columnsErr
	}
	return append([]models.ColumnDescriptor(nil), m.columns[table]...), nil
}

func (m *mockCatalogReader) SampleRows(ctx context.Context, table string, limit int) (*datasource.QueryResult, error) {
	m.sampleCalls.Add(1)
	m.lastLimit.Store(int32(limit))
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}

	var columns []string
	for _, c := range m.columns[table] {
		columns = append(columns, c.ColumnName)
	}

	rows := m.rows[table]
	if !m.ignoreLimit && len(rows) > limit {
		rows = rows[:limit]
	}
	return &datasource.QueryResult{Columns: columns, Rows: rows}, nil
}

func (m *mockCatalogReader) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (m *mockCatalogReader) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockCatalogReader) Close() error { return nil }

// storeCalls is the total number of catalog queries issued.
func (m *mockCatalogReader) storeCalls() int32 {
	return m.listCalls.Load() + m.columnsCalls.Load() + m.sampleCalls.Load()
}

func u64(n uint64) *uint64 { return &n }

// newShopReader returns a store with users, orders, products and a
// secrets table that is never allow-listed.
func newShopReader() *mockCatalogReader {
	return &mockCatalogReader{
		tables: []datasource.TableInfo{
			{Name: "orders", Engine: "MergeTree", TotalRows: u64(3)},
			{Name: "products", Engine: "MergeTree", TotalRows: u64(2)},
			{Name: "secrets", Engine: "MergeTree", TotalRows: u64(1)},
			{Name: "users", Engine: "MergeTree", TotalRows: u64(2)},
		},
		columns: map[string][]models.ColumnDescriptor{
			"users": {
				{ColumnName: "user_id", DataType: "UInt32", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "email", DataType: "String", OrdinalPosition: 2},
			},
			"orders": {
				{ColumnName: "order_id", DataType: "UInt32", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "user_id", DataType: "UInt32", OrdinalPosition: 2},
				{ColumnName: "status", DataType: "Enum8('pending' = 1, 'shipped' = 2)", OrdinalPosition: 3},
			},
			"products": {
				{ColumnName: "product_id", DataType: "UInt32", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "name", DataType: "String", OrdinalPosition: 2},
			},
			"secrets": {
				{ColumnName: "token", DataType: "String", OrdinalPosition: 1},
			},
		},
		rows: map[string][]models.Row{
			"users": {
				{"user_id": uint32(1), "email": "a@example.com"},
				{"user_id": uint32(2), "email": "b@example.com"},
			},
			"orders": {
				{"order_id": uint32(10), "user_id": uint32(1), "status": "pending"},
				{"order_id": uint32(11), "user_id": uint32(2), "status": "shipped"},
				{"order_id": uint32(12), "user_id": uint32(1), "status": "shipped"},
			},
			"secrets": {
				{"token": "do-not-leak"},
			},
		},
	}
}

var shopAllowList = []string{"users", "orders", "products"}
