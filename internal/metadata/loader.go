package metadata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"mini-api/internal/config"
)

// LoadConfig builds endpoints and models from the configuration and
// populates the registry. Malformed relation entries are skipped with a
// warning; route collisions and broken model definitions are errors.
func LoadConfig(cfg *config.Config, reg *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	models, err := loadModels(cfg.Models)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	endpoints, err := loadEndpoints(cfg.Endpoints, logger)
	if err != nil {
		return fmt.Errorf("load endpoints: %w", err)
	}

	global := AuthConfig{
		Enabled: cfg.Auth.Enabled,
		Key:     cfg.Auth.Key,
		Header:  cfg.Auth.Header,
		Query:   cfg.Auth.Query,
	}
	reg.Load(global, endpoints, models)

	logger.Info("registry loaded",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("models", len(models)),
		zap.Bool("auth_enabled", global.Required()))
	return nil
}

func loadEndpoints(defs map[string]config.EndpointConfig, logger *zap.Logger) ([]*Endpoint, error) {
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byRoute := make(map[string]string, len(keys))
	endpoints := make([]*Endpoint, 0, len(keys))
	for _, key := range keys {
		ep := ParseEndpoint(key, defs[key], logger)
		if ep.Route == "" {
			logger.Warn("endpoint has no route, not exposed", zap.String("endpoint", key))
		} else if other, ok := byRoute[ep.Route]; ok {
			return nil, fmt.Errorf("endpoints %q and %q share route %q", other, key, ep.Route)
		} else {
			byRoute[ep.Route] = key
		}
		if !ep.Valid() {
			logger.Warn("endpoint has neither table nor model, requests will get 404",
				zap.String("endpoint", key))
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// ParseEndpoint converts one endpoint definition. The data source is decided
// here, once: model wins over table, and neither leaves Source nil.
func ParseEndpoint(key string, def config.EndpointConfig, logger *zap.Logger) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("endpoint", key))

	ep := &Endpoint{
		Key:     key,
		Route:   normalizeRoute(def.Route, key),
		Columns: normalizeColumns(def.Columns),
		Auth:    convertAuth(def.Auth),
	}

	if def.Model != "" && def.Table != "" {
		log.Warn("endpoint sets both model and table, using model", zap.String("model", def.Model))
	}
	switch {
	case def.Model != "":
		ep.Source = ModelSource{Model: def.Model, Relations: ParseRelationLoads(def.Relations, log)}
	case def.Table != "":
		ep.Source = TableSource{Table: def.Table, Joins: ParseJoins(def.Relations, log)}
	}
	return ep
}

func normalizeRoute(route, key string) string {
	if route == "" {
		route = key
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	return strings.TrimPrefix(route, "api/")
}

func normalizeColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	if IsWildcard(out) {
		return []string{Wildcard}
	}
	return out
}

func convertAuth(a *config.AuthOverrideConfig) *AuthOverride {
	if a == nil {
		return nil
	}
	return &AuthOverride{Enabled: a.Enabled, Key: a.Key, Header: a.Header, Query: a.Query}
}

// ParseJoins decodes table-mode relation entries into join specs.
// Entries that are not maps, or that do not decode, are skipped.
func ParseJoins(raw []any, logger *zap.Logger) []JoinSpec {
	var joins []JoinSpec
	for i, entry := range raw {
		m, ok := asStringMap(entry)
		if !ok {
			logger.Warn("skipping join entry: not a mapping", zap.Int("index", i))
			continue
		}
		var j JoinSpec
		if err := decodeWeak(m, &j); err != nil {
			logger.Warn("skipping join entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		joins = append(joins, j)
	}
	return joins
}

// ParseRelationLoads normalizes model-mode relation entries. A string is a
// relation path with default columns; a mapping of path to column list
// restricts the related columns.
func ParseRelationLoads(raw []any, logger *zap.Logger) []RelationLoad {
	var loads []RelationLoad
	for i, entry := range raw {
		if s, ok := entry.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				loads = append(loads, RelationLoad{Path: s})
			}
			continue
		}

		m, ok := asStringMap(entry)
		if !ok {
			logger.Warn("skipping relation entry: unsupported shape", zap.Int("index", i))
			continue
		}
		paths := make([]string, 0, len(m))
		for p := range m {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			var cols []string
			if err := decodeWeak(m[p], &cols); err != nil {
				logger.Warn("skipping relation entry", zap.String("relation", p), zap.Error(err))
				continue
			}
			loads = append(loads, RelationLoad{Path: strings.TrimSpace(p), Columns: cols})
		}
	}
	return loads
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func decodeWeak(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func loadModels(defs []config.ModelConfig) ([]*Model, error) {
	models := make([]*Model, 0, len(defs))
	byName := make(map[string]*Model, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("model without name")
		}
		if def.Table == "" {
			return nil, fmt.Errorf("model %s: table is required", def.Name)
		}
		if _, dup := byName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate model %s", def.Name)
		}
		m := &Model{Name: def.Name, Table: def.Table, PrimaryKey: def.PrimaryKey}
		if m.PrimaryKey == "" {
			m.PrimaryKey = "id"
		}
		for _, rd := range def.Relations {
			m.Relations = append(m.Relations, &Relation{
				Name:          rd.Name,
				Type:          rd.Type,
				Target:        rd.Target,
				ForeignKey:    rd.ForeignKey,
				OwnerKey:      rd.OwnerKey,
				JoinTable:     rd.JoinTable,
				SourceJoinKey: rd.SourceJoinKey,
				TargetJoinKey: rd.TargetJoinKey,
			})
		}
		byName[m.Name] = m
		models = append(models, m)
	}

	for _, m := range models {
		for _, rel := range m.Relations {
			if err := validateRelation(rel, byName); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
		}
	}
	return models, nil
}

func validateRelation(rel *Relation, models map[string]*Model) error {
	if rel.Name == "" {
		return fmt.Errorf("relation without name")
	}
	if models[rel.Target] == nil {
		return fmt.Errorf("relation %s: unknown target model %q", rel.Name, rel.Target)
	}
	switch rel.Type {
	case BelongsTo, HasOne, HasMany:
		if rel.ForeignKey == "" {
			return fmt.Errorf("relation %s: foreign_key is required", rel.Name)
		}
	case ManyToMany:
		if rel.JoinTable == "" || rel.SourceJoinKey == "" || rel.TargetJoinKey == "" {
			return fmt.Errorf("relation %s: join_table, source_join_key and target_join_key are required", rel.Name)
		}
	default:
		return fmt.Errorf("relation %s: unknown type %q", rel.Name, rel.Type)
	}
	return nil
}
