package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

const (
	ModeTable = "table"
	ModeModel = "model"
)

const endpointLocal = "endpoint"

// ErrorReporter receives execution failures that are hidden from the client.
type ErrorReporter interface {
	Report(ctx context.Context, endpoint, mode string, err error)
}

type Handler struct {
	store        *store.Store
	registry     *metadata.Registry
	logger       *zap.Logger
	reporter     ErrorReporter
	queryTimeout time.Duration
}

func NewHandler(s *store.Store, reg *metadata.Registry, logger *zap.Logger, reporter ErrorReporter, queryTimeout time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:        s,
		registry:     reg,
		logger:       logger,
		reporter:     reporter,
		queryTimeout: queryTimeout,
	}
}

// Resolve returns a middleware that looks up the endpoint registered under
// route and stores it on the request. Missing or invalid endpoints are 404.
func (h *Handler) Resolve(route string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ep := h.registry.Resolve(route)
		if ep == nil {
			return NotFoundError()
		}
		SetEndpoint(c, ep)
		return c.Next()
	}
}

// SetEndpoint stores the resolved endpoint on the request.
func SetEndpoint(c *fiber.Ctx, ep *metadata.Endpoint) {
	c.Locals(endpointLocal, ep)
}

// EndpointFrom returns the endpoint resolved for this request, or nil.
func EndpointFrom(c *fiber.Ctx) *metadata.Endpoint {
	ep, _ := c.Locals(endpointLocal).(*metadata.Endpoint)
	return ep
}

// ModeOf names the data source kind of an endpoint.
func ModeOf(ep *metadata.Endpoint) string {
	if _, ok := ep.Source.(metadata.ModelSource); ok {
		return ModeModel
	}
	return ModeTable
}

// Show handles GET /api/<route>. The response is always a JSON array.
func (h *Handler) Show(c *fiber.Ctx) error {
	ep := EndpointFrom(c)
	if ep == nil {
		return NotFoundError()
	}

	ctx := c.UserContext()
	rows, err := h.Fetch(ctx, ep)
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if h.reporter != nil {
			h.reporter.Report(ctx, ep.Key, ModeOf(ep), err)
		}
		return ExecutionError()
	}
	return c.JSON(rows)
}

// Fetch runs the endpoint's query and returns projected rows.
func (h *Handler) Fetch(ctx context.Context, ep *metadata.Endpoint) ([]map[string]any, error) {
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	log := h.logger.With(zap.String("endpoint", ep.Key))
	switch src := ep.Source.(type) {
	case metadata.TableSource:
		return h.fetchTable(ctx, ep, src, log)
	case metadata.ModelSource:
		return h.fetchModel(ctx, ep, src, log)
	default:
		return nil, NotFoundError()
	}
}

func (h *Handler) fetchTable(ctx context.Context, ep *metadata.Endpoint, src metadata.TableSource, log *zap.Logger) ([]map[string]any, error) {
	plan, err := BuildTablePlan(src, ep.Columns, h.store.Dialect, log)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	err = h.withConn(ctx, func(conn *sql.Conn) error {
		rows, err = h.store.Select(ctx, conn, plan.Query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", plan.Table, err)
	}

	keep := groupNames(plan.Groups)
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = ProjectRow(GroupJoinAliases(row, plan.Groups), plan.Columns, keep)
	}
	return out, nil
}

func (h *Handler) fetchModel(ctx context.Context, ep *metadata.Endpoint, src metadata.ModelSource, log *zap.Logger) ([]map[string]any, error) {
	model := h.registry.GetModel(src.Model)
	if model == nil {
		return nil, ConfigurationError(MsgInvalidModel)
	}

	table := SanitizeIdentifier(model.Table)
	if table == "" {
		return nil, ConfigurationError(MsgInvalidModel)
	}

	tree := buildRelationTree(h.registry, model, src.Relations, log)
	d := h.store.Dialect
	selects, visible := selectList(d, ep.Columns, parentKeys(tree), log)
	if len(selects) == 0 {
		return nil, fmt.Errorf("model %s: no selectable columns", model.Name)
	}
	b := sq.Select(selects...).From(d.QuoteIdentifier(table))

	var rows []map[string]any
	err := h.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		rows, err = h.store.Select(ctx, conn, b)
		if err != nil {
			return fmt.Errorf("query %s: %w", table, err)
		}
		loader := &relationLoader{store: h.store, q: conn, logger: log}
		return loader.LoadRelations(ctx, rows, tree)
	})
	if err != nil {
		return nil, err
	}

	keep := relationNames(tree)
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = ProjectRow(row, visible, keep)
	}
	return out, nil
}

// withConn runs fn on a dedicated connection that is released on every path.
func (h *Handler) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := h.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}
