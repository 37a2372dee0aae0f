package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

type stubReader struct {
	cfg *ConnectionConfig
}

func (s *stubReader) ListTables(ctx context.Context) ([]TableInfo, error) { return nil, nil }
func (s *stubReader) ListColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	return nil, nil
}
func (s *stubReader) SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error) {
	return &QueryResult{}, nil
}
func (s *stubReader) QuoteIdentifier(name string) string { return name }
func (s *stubReader) Ping(ctx context.Context) error      { return nil }
func (s *stubReader) Close() error                        { return nil }

func TestRegistry_OpenRegisteredType(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "stub-test", DisplayName: "Stub"},
		Factory: func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (CatalogReader, error) {
			require.NotNil(t, logger)
			return &stubReader{cfg: cfg}, nil
		},
	})

	assert.True(t, IsRegistered("stub-test"))

	cfg := &ConnectionConfig{Host: "db", Port: 1234}
	reader, err := Open(context.Background(), "stub-test", cfg, nil)
	require.NoError(t, err)

	stub, ok := reader.(*stubReader)
	require.True(t, ok)
	assert.Same(t, cfg, stub.cfg)

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "stub-test" {
			found = true
		}
	}
	assert.True(t, found, "stub adapter should be listed")
}

func TestRegistry_OpenUnknownType(t *testing.T) {
	_, err := Open(context.Background(), "does-not-exist", &ConnectionConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported datasource type")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 1, ClampLimit(0))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxSampleLimit, ClampLimit(MaxSampleLimit+1))
	assert.Equal(t, MaxSampleLimit, ClampLimit(1_000_000))
}
