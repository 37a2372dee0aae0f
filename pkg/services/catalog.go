package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/logging"
	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const (
	tablesCacheKey    = "tables"
	columnsCacheKeyPf = "columns:"
)

// CatalogService is the allow-listed, read-only view of the data store.
// Every table-scoped operation checks the allow-list before touching the
// store.
type CatalogService interface {
	// AllowedTables returns the static allow-list in configured order.
	AllowedTables() []string

	// IsAllowed reports whether table is on the allow-list.
	IsAllowed(table string) bool

	// ListTables returns allow-listed tables the store actually has, sorted
	// by name.
	ListTables(ctx context.Context) ([]datasource.TableInfo, error)

	// GetColumns returns the columns of an allow-listed table.
	GetColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error)

	// GetSampleRows returns at most MaxSampleRows rows; limit is clamped.
	GetSampleRows(ctx context.Context, table string, limit int) (*models.SampleData, error)

	// DescribeTable returns a table's columns, store metadata and inferred
	// relationships touching it.
	DescribeTable(ctx context.Context, table string) (*models.TableDescriptor, error)

	// DescribeDatabase describes every allow-listed table in the store.
	DescribeDatabase(ctx context.Context) ([]*models.TableDescriptor, error)

	// MaxSampleRows is the upper bound applied to GetSampleRows.
	MaxSampleRows() int

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}

// CatalogOptions configures a CatalogService.
type CatalogOptions struct {
	AllowedTables []string
	MaxSampleRows int
	StoreTimeout  time.Duration
	// CacheTTL > 0 caches table and column lookups; zero fetches fresh
	// on every call.
	CacheTTL time.Duration
}

type catalogService struct {
	reader   datasource.CatalogReader
	allowed  []string
	allowSet map[string]bool
	maxRows  int
	timeout  time.Duration
	cache    *ttlcache.Cache[string, any]
	logger   *zap.Logger
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wraps reader with the allow-list and limits in opts.
func NewCatalogService(reader datasource.CatalogReader, opts CatalogOptions, logger *zap.Logger) CatalogService {
	allowSet := make(map[string]bool, len(opts.AllowedTables))
	allowed := make([]string, 0, len(opts.AllowedTables))
	for _, t := range opts.AllowedTables {
		if t == "" || allowSet[t] {
			continue
		}
		allowSet[t] = true
		allowed = append(allowed, t)
	}

	maxRows := opts.MaxSampleRows
	if maxRows < 1 {
		maxRows = 1
	}
	if maxRows > datasource.MaxSampleLimit {
		maxRows = datasource.MaxSampleLimit
	}

	s := &catalogService{
		reader:   reader,
		allowed:  allowed,
		allowSet: allowSet,
		maxRows:  maxRows,
		timeout:  opts.StoreTimeout,
		logger:   logger.Named("catalog"),
	}
	if opts.CacheTTL > 0 {
		s.cache = ttlcache.New(
			ttlcache.WithTTL[string, any](opts.CacheTTL),
			ttlcache.WithDisableTouchOnHit[string, any](),
		)
	}
	return s
}

func (s *catalogService) AllowedTables() []string {
	out := make([]string, len(s.allowed))
	copy(out, s.allowed)
	return out
}

func (s *catalogService) IsAllowed(table string) bool {
	return s.allowSet[table]
}

func (s *catalogService) MaxSampleRows() int {
	return s.maxRows
}

func (s *catalogService) checkAllowed(table string) error {
	if !s.allowSet[table] {
		return fmt.Errorf("%w: %q is not an allowed table", apperrors.ErrUnknownTable, table)
	}
	return nil
}

// withTimeout bounds a single store call.
func (s *catalogService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeError tags a store failure as ErrStoreUnavailable. Timeouts are
// availability failures too.
func (s *catalogService) storeError(op string, err error) error {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Warn("Data store call failed",
		zap.String("operation", op),
		zap.String("error", logging.SanitizeError(err)))
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStoreUnavailable, op, err)
}

func (s *catalogService) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *catalogService) ListTables(ctx context.Context) ([]datasource.TableInfo, error) {
	if s.cache != nil {
		if item := s.cache.Get(tablesCacheKey); item != nil {
			return item.Value().([]datasource.TableInfo), nil
		}
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	reported, err := s.reader.ListTables(callCtx)
	if err != nil {
		return nil, s.storeError("list_tables", err)
	}

	tables := make([]datasource.TableInfo, 0, len(s.allowed))
	seen := make(map[string]bool, len(reported))
	for _, t := range reported {
		if s.allowSet[t.Name] && !seen[t.Name] {
			seen[t.Name] = true
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	s.logger.Debug("Listed tables",
		zap.Int("reported", len(reported)),
		zap.Int("allowed", len(tables)))

	if s.cache != nil {
		s.cache.Set(tablesCacheKey, tables, ttlcache.DefaultTTL)
	}
	return tables, nil
}

func (s *catalogService) GetColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	if err := s.checkAllowed(table); err != nil {
		return nil, err
	}
	return s.fetchColumns(ctx, table)
}

func (s *catalogService) fetchColumns(ctx context.Context, table string) ([]models.ColumnDescriptor, error) {
	key := columnsCacheKeyPf + table
	if s.cache != nil {
		if item := s.cache.Get(key); item != nil {
			return item.Value().([]models.ColumnDescriptor), nil
		}
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	columns, err := s.reader.ListColumns(callCtx, table)
	if err != nil {
		return nil, s.storeError("list_columns", err)
	}
	if len(columns) == 0 {
		// Allowed but absent from the store.
		return nil, fmt.Errorf("%w: %q does not exist in the data store", apperrors.ErrUnknownTable, table)
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].OrdinalPosition < columns[j].OrdinalPosition
	})

	if s.cache != nil {
		s.cache.Set(key, columns, ttlcache.DefaultTTL)
	}
	return columns, nil
}

func (s *catalogService) GetSampleRows(ctx context.Context, table string, limit int) (*models.SampleData, error) {
	if err := s.checkAllowed(table); err != nil {
		return nil, err
	}

	limit = s.clampLimit(limit)

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.reader.SampleRows(callCtx, table, limit)
	if err != nil {
		return nil, s.storeError("sample_rows", err)
	}

	rows := result.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []models.Row{}
	}

	return &models.SampleData{
		TableName: table,
		Columns:   result.Columns,
		Rows:      rows,
		Limit:     limit,
	}, nil
}

func (s *catalogService) clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > s.maxRows {
		return s.maxRows
	}
	return limit
}

func (s *catalogService) DescribeTable(ctx context.Context, table string) (*models.TableDescriptor, error) {
	if err := s.checkAllowed(table); err != nil {
		return nil, err
	}

	all, err := s.DescribeDatabase(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range all {
		if t.TableName == table {
			t.Relationships = RelationshipsFor(t.Relationships, table)
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q does not exist in the data store", apperrors.ErrUnknownTable, table)
}

func (s *catalogService) DescribeDatabase(ctx context.Context) ([]*models.TableDescriptor, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	descriptors := make([]*models.TableDescriptor, 0, len(tables))
	for _, info := range tables {
		columns, err := s.fetchColumns(ctx, info.Name)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnknownTable) {
				// Dropped between listing and describing.
				continue
			}
			return nil, err
		}
		descriptors = append(descriptors, &models.TableDescriptor{
			TableName: info.Name,
			Engine:    info.Engine,
			TotalRows: info.TotalRows,
			Columns:   columns,
		})
	}

	rels := InferRelationships(descriptors)
	for _, d := range descriptors {
		d.Relationships = RelationshipsFor(rels, d.TableName)
	}
	return descriptors, nil
}
