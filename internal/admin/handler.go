package admin

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mini-api/internal/config"
	"mini-api/internal/configfile"
	"mini-api/internal/engine"
	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

// maxRelationDepth bounds the nested relation tree; model graphs may be cyclic.
const maxRelationDepth = 4

const (
	maxNameLength     = 100
	maxModelLength    = 255
	maxRelationLength = 255
)

// Handler serves the endpoint builder's metadata API.
type Handler struct {
	store      *store.Store
	registry   *metadata.Registry
	configPath string
	logger     *zap.Logger
}

func NewHandler(s *store.Store, reg *metadata.Registry, configPath string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: s, registry: reg, configPath: configPath, logger: logger}
}

// RegisterBuilderRoutes mounts the builder API under /<route>/api.
func RegisterBuilderRoutes(app *fiber.App, h *Handler, route string, middleware ...fiber.Handler) {
	api := app.Group("/"+strings.Trim(route, "/")+"/api", middleware...)

	api.Get("/tables", h.ListTables)
	api.Get("/tables/:table/columns", h.ListColumns)
	api.Get("/models", h.ListModels)
	api.Get("/models/:model/relations", h.ListRelations)
	api.Post("/config", h.StoreConfig)
}

// --- Schema ---

func (h *Handler) ListTables(c *fiber.Ctx) error {
	tables, err := h.store.Dialect.ListTables(c.UserContext(), h.store.DB)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return c.JSON(fiber.Map{"tables": tables})
}

func (h *Handler) ListColumns(c *fiber.Ctx) error {
	table := engine.SanitizeIdentifier(c.Params("table"))
	if table == "" {
		return engine.NewAppError("VALIDATION_FAILED", fiber.StatusUnprocessableEntity, "Invalid table name")
	}
	columns, err := h.store.Dialect.GetColumns(c.UserContext(), h.store.DB, table)
	if err != nil {
		return fmt.Errorf("list columns of %s: %w", table, err)
	}
	if columns == nil {
		columns = []string{}
	}
	return c.JSON(fiber.Map{"columns": columns})
}

// --- Models ---

type modelSummary struct {
	Name  string `json:"name"`
	Table string `json:"table"`
}

func (h *Handler) ListModels(c *fiber.Ctx) error {
	models := h.registry.AllModels()
	out := make([]modelSummary, len(models))
	for i, m := range models {
		out[i] = modelSummary{Name: m.Name, Table: m.Table}
	}
	return c.JSON(fiber.Map{"models": out})
}

// ListRelations returns the model's own relation names plus every dotted
// path reachable from it, up to maxRelationDepth levels deep.
func (h *Handler) ListRelations(c *fiber.Ctx) error {
	model := h.registry.GetModel(c.Params("model"))
	if model == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"relations": []string{},
			"nested":    map[string]string{},
		})
	}

	nested := make(map[string]string)
	h.relationTree(model, "", 0, nested)
	return c.JSON(fiber.Map{
		"relations": model.RelationNames(),
		"nested":    nested,
	})
}

func (h *Handler) relationTree(m *metadata.Model, prefix string, depth int, tree map[string]string) {
	if depth > maxRelationDepth {
		return
	}
	for _, rel := range m.Relations {
		path := rel.Name
		if prefix != "" {
			path = prefix + "." + rel.Name
		}
		tree[path] = path
		if target := h.registry.GetModel(rel.Target); target != nil {
			h.relationTree(target, path, depth+1, tree)
		}
	}
}

// --- Config ---

type endpointInput struct {
	Key       string   `json:"key"`
	Route     string   `json:"route"`
	Table     string   `json:"table"`
	Model     string   `json:"model"`
	Columns   []string `json:"columns"`
	Relations []string `json:"relations"`
}

type storeConfigRequest struct {
	endpointInput
	Endpoints []endpointInput `json:"endpoints"`
}

// StoreConfig handles POST /config. The body is one endpoint, or
// {"endpoints": [...]} for several. Keys and routes are slugged.
func (h *Handler) StoreConfig(c *fiber.Ctx) error {
	if h.configPath == "" {
		return validationError("No config file found. Create mini-api.yaml first.")
	}

	var req storeConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError("Invalid JSON body")
	}

	inputs := req.Endpoints
	if len(inputs) == 0 {
		inputs = []endpointInput{req.endpointInput}
	}

	named := make([]configfile.NamedEndpoint, 0, len(inputs))
	for i, in := range inputs {
		if err := validateInput(in); err != nil {
			return validationError(fmt.Sprintf("endpoint %d: %s", i, err))
		}
		named = append(named, toNamedEndpoint(in))
	}

	if err := configfile.AppendEndpoints(h.configPath, named); err != nil {
		h.logger.Error("write endpoint config", zap.String("file", h.configPath), zap.Error(err))
		return engine.NewAppError("WRITE_FAILED", fiber.StatusInternalServerError, "Config file could not be written.")
	}

	msg := fmt.Sprintf("Endpoint written to %s.", h.configPath)
	if len(named) > 1 {
		msg = fmt.Sprintf("%d endpoints written to %s.", len(named), h.configPath)
	}
	h.logger.Info("endpoint config written", zap.Int("count", len(named)), zap.String("file", h.configPath))
	return c.JSON(fiber.Map{"success": true, "message": msg})
}

func validateInput(in endpointInput) error {
	switch {
	case strings.TrimSpace(in.Key) == "":
		return fmt.Errorf("key is required")
	case len(in.Key) > maxNameLength:
		return fmt.Errorf("key is longer than %d characters", maxNameLength)
	case strings.TrimSpace(in.Route) == "":
		return fmt.Errorf("route is required")
	case len(in.Route) > maxNameLength:
		return fmt.Errorf("route is longer than %d characters", maxNameLength)
	case len(in.Table) > maxNameLength:
		return fmt.Errorf("table is longer than %d characters", maxNameLength)
	case len(in.Model) > maxModelLength:
		return fmt.Errorf("model is longer than %d characters", maxModelLength)
	case len(in.Columns) == 0:
		return fmt.Errorf("columns are required")
	}
	for _, col := range in.Columns {
		if len(col) > maxNameLength {
			return fmt.Errorf("column %q is longer than %d characters", col, maxNameLength)
		}
	}
	for _, rel := range in.Relations {
		if len(rel) > maxRelationLength {
			return fmt.Errorf("relation %q is longer than %d characters", rel, maxRelationLength)
		}
	}
	if configfile.KeySlug(in.Key) == "" || configfile.RouteSlug(in.Route) == "" {
		return fmt.Errorf("key and route must contain letters or digits")
	}
	return nil
}

func toNamedEndpoint(in endpointInput) configfile.NamedEndpoint {
	key := configfile.KeySlug(in.Key)
	ep := config.EndpointConfig{
		Route:   configfile.RouteSlug(in.Route),
		Columns: in.Columns,
	}
	if in.Model != "" {
		ep.Model = in.Model
	} else {
		ep.Table = in.Table
		if ep.Table == "" {
			ep.Table = key
		}
	}
	for _, rel := range in.Relations {
		ep.Relations = append(ep.Relations, rel)
	}
	return configfile.NamedEndpoint{Key: key, Endpoint: ep}
}

func validationError(msg string) *engine.AppError {
	return engine.NewAppError("VALIDATION_FAILED", fiber.StatusUnprocessableEntity, msg)
}
