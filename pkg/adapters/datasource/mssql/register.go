package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+ and Azure SQL Database with SQL authentication",
		},
		Factory: func(ctx context.Context, cfg *datasource.ConnectionConfig, logger *zap.Logger) (datasource.CatalogReader, error) {
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
