package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Factory: func(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (datasource.CatalogReader, error) {
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
