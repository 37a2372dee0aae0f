package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// ToolHandler executes a tool with arguments that already passed schema and
// allow-list validation.
type ToolHandler func(ctx context.Context, args map[string]any) (*models.ToolResult, error)

// ToolDefinition binds a tool name to its argument schema and handler.
type ToolDefinition struct {
	Name        string
	Description string
	// Schema validates arguments. Missing required, unexpected, or mistyped
	// arguments are rejected with ErrInvalidArguments.
	Schema *jsonschema.Schema
	// TableArgs names string arguments that reference a table and must be
	// on the allow-list.
	TableArgs []string
	Handler   ToolHandler
}

// ToolRegistry holds the tools the assistant may run. It is populated at
// startup and read-only afterwards.
type ToolRegistry interface {
	// Register adds a tool. Names must be unique.
	Register(def ToolDefinition) error

	// Invoke validates args and runs the named tool.
	Invoke(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error)

	// ListDescriptions returns every tool, sorted by name, with its
	// argument schema. Table arguments advertise the allow-list as an enum.
	ListDescriptions() []models.ToolDescription

	// Has reports whether a tool is registered.
	Has(name string) bool
}

type registeredTool struct {
	def      ToolDefinition
	resolved *jsonschema.Resolved
}

type toolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]*registeredTool
	allowed func(table string) bool
	tables  func() []string
	logger  *zap.Logger
}

var _ ToolRegistry = (*toolRegistry)(nil)

// NewToolRegistry creates an empty registry that checks table arguments
// against catalog's allow-list.
func NewToolRegistry(catalog CatalogService, logger *zap.Logger) ToolRegistry {
	return &toolRegistry{
		tools:   make(map[string]*registeredTool),
		allowed: catalog.IsAllowed,
		tables:  catalog.AllowedTables,
		logger:  logger.Named("tools"),
	}
}

func (r *toolRegistry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}
	if def.Schema == nil {
		def.Schema = &jsonschema.Schema{Type: "object"}
	}

	resolved, err := def.Schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %s: resolve argument schema: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = &registeredTool{def: def, resolved: resolved}
	return nil
}

func (r *toolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *toolRegistry) Invoke(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		metrics.ToolInvocationsTotal.WithLabelValues("unknown", "unknown_tool").Inc()
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownTool, name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := tool.resolved.Validate(args); err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(name, "invalid_arguments").Inc()
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidArguments, name, err)
	}

	// Allow-list is enforced here regardless of what the caller asked for.
	for _, arg := range tool.def.TableArgs {
		v, present := args[arg]
		if !present {
			continue
		}
		table, _ := v.(string)
		if !r.allowed(table) {
			metrics.ToolInvocationsTotal.WithLabelValues(name, "unknown_table").Inc()
			return nil, fmt.Errorf("%w: %q is not an allowed table", apperrors.ErrUnknownTable, table)
		}
	}

	r.logger.Debug("Invoking tool", zap.String("tool", name), zap.Any("arguments", args))

	result, err := tool.def.Handler(ctx, args)
	if err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(name, resultLabel(err)).Inc()
		return nil, err
	}
	metrics.ToolInvocationsTotal.WithLabelValues(name, metrics.ResultOK).Inc()

	if result.Tool == "" {
		result.Tool = name
	}
	return result, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnknownTable):
		return "unknown_table"
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return metrics.ResultError
	}
}

func (r *toolRegistry) ListDescriptions() []models.ToolDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descs := make([]models.ToolDescription, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		descs = append(descs, models.ToolDescription{
			Name:        name,
			Description: tool.def.Description,
			Parameters:  r.advertisedSchema(tool.def),
		})
	}
	return descs
}

// advertisedSchema returns the argument schema as a generic JSON object with
// the allow-list added as an enum on table arguments. The validation schema
// itself carries no enum so disallowed tables surface as ErrUnknownTable
// rather than ErrInvalidArguments.
func (r *toolRegistry) advertisedSchema(def ToolDefinition) map[string]any {
	raw, err := json.Marshal(def.Schema)
	if err != nil {
		r.logger.Error("Failed to marshal tool schema", zap.String("tool", def.Name), zap.Error(err))
		return map[string]any{"type": "object"}
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return map[string]any{"type": "object"}
	}

	props, _ := schema["properties"].(map[string]any)
	tables := r.tables()
	for _, arg := range def.TableArgs {
		prop, ok := props[arg].(map[string]any)
		if !ok {
			continue
		}
		enum := make([]any, len(tables))
		for i, t := range tables {
			enum[i] = t
		}
		prop["enum"] = enum
	}
	return schema
}

// decodeArgs converts validated arguments into a typed struct.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("%w: %v", apperrors.ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", apperrors.ErrInvalidArguments, err)
	}
	return out, nil
}
