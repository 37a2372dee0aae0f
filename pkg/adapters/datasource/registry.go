package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "clickhouse", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "ClickHouse", "PostgreSQL"
	Description string `json:"description"`
}

// AdapterFactory opens a CatalogReader for the given connection parameters.
type AdapterFactory func(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (CatalogReader, error)

// AdapterRegistration contains info + factory for creating adapters.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory AdapterFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

// Open creates a CatalogReader for a registered adapter type.
func Open(ctx context.Context, dsType string, cfg *ConnectionConfig, logger *zap.Logger) (CatalogReader, error) {
	registryMu.RLock()
	reg, ok := registry[dsType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Factory(ctx, cfg, logger)
}
