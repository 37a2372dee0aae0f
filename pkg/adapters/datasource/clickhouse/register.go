package clickhouse

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "clickhouse",
			DisplayName: "ClickHouse",
			Description: "Connect to ClickHouse over the native protocol",
		},
		Factory: func(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (datasource.CatalogReader, error) {
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
