package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mini-api/internal/config"
	"mini-api/internal/engine"
	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

func testApp(t *testing.T, configPath string) *fiber.App {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", DSNOverride: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	_, err = s.DB.ExecContext(ctx, `
		CREATE TABLE companies (id INTEGER PRIMARY KEY, name TEXT, country_id INTEGER);
		CREATE TABLE countries (id INTEGER PRIMARY KEY, name TEXT);`)
	require.NoError(t, err)

	reg := metadata.NewRegistry()
	require.NoError(t, metadata.LoadConfig(&config.Config{Models: []config.ModelConfig{
		{Name: "Company", Table: "companies", Relations: []config.RelationConfig{
			{Name: "country", Type: metadata.BelongsTo, Target: "Country", ForeignKey: "country_id"},
		}},
		{Name: "Country", Table: "countries", Relations: []config.RelationConfig{
			{Name: "companies", Type: metadata.HasMany, Target: "Company", ForeignKey: "country_id"},
		}},
	}}, reg, nil))

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	RegisterBuilderRoutes(app, NewHandler(s, reg, configPath, nil), "mini-api-builder")
	return app
}

func do(t *testing.T, app *fiber.App, method, url, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestListTablesAndColumns(t *testing.T) {
	app := testApp(t, "")

	status, body := do(t, app, "GET", "/mini-api-builder/api/tables", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, []any{"companies", "countries"}, body["tables"])

	status, body = do(t, app, "GET", "/mini-api-builder/api/tables/companies/columns", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, []any{"id", "name", "country_id"}, body["columns"])
}

func TestListModelsAndRelations(t *testing.T) {
	app := testApp(t, "")

	status, body := do(t, app, "GET", "/mini-api-builder/api/models", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, []any{
		map[string]any{"name": "Company", "table": "companies"},
		map[string]any{"name": "Country", "table": "countries"},
	}, body["models"])

	status, body = do(t, app, "GET", "/mini-api-builder/api/models/Company/relations", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, []any{"country"}, body["relations"])
	nested := body["nested"].(map[string]any)
	assert.Contains(t, nested, "country")
	assert.Contains(t, nested, "country.companies")
	assert.Contains(t, nested, "country.companies.country.companies.country")
	assert.NotContains(t, nested, "country.companies.country.companies.country.companies")

	status, body = do(t, app, "GET", "/mini-api-builder/api/models/Nope/relations", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, []any{}, body["relations"])
}

func TestStoreConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	app := testApp(t, path)

	status, body := do(t, app, "POST", "/mini-api-builder/api/config",
		`{"key":"Job Offers","route":"Job Offers","columns":["id","title"]}`)
	require.Equal(t, 200, status, body)
	assert.Equal(t, true, body["success"])

	status, body = do(t, app, "POST", "/mini-api-builder/api/config",
		`{"endpoints":[
			{"key":"companies","route":"companies","model":"Company","columns":["*"],"relations":["country"]},
			{"key":"countries","route":"countries","table":"countries","columns":["name"]}
		]}`)
	require.Equal(t, 200, status, body)
	assert.Contains(t, body["message"], "2 endpoints")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file struct {
		Server    map[string]any                   `yaml:"server"`
		Endpoints map[string]config.EndpointConfig `yaml:"endpoints"`
	}
	require.NoError(t, yaml.Unmarshal(data, &file))

	offers := file.Endpoints["job_offers"]
	assert.Equal(t, "job-offers", offers.Route)
	assert.Equal(t, "job_offers", offers.Table, "table defaults to the key")
	assert.Equal(t, "Company", file.Endpoints["companies"].Model)
	assert.Empty(t, file.Endpoints["companies"].Table)
	assert.Equal(t, []any{"country"}, file.Endpoints["companies"].Relations)
	assert.EqualValues(t, 8080, file.Server["port"])
}

func TestStoreConfig_Validation(t *testing.T) {
	app := testApp(t, filepath.Join(t.TempDir(), "mini-api.yaml"))

	cases := []string{
		`{"route":"x","columns":["id"]}`,
		`{"key":"x","columns":["id"]}`,
		`{"key":"x","route":"x"}`,
		`{"key":"!!!","route":"x","columns":["id"]}`,
		`not json`,
	}
	for _, body := range cases {
		status, out := do(t, app, "POST", "/mini-api-builder/api/config", body)
		assert.Equal(t, 422, status, body)
		assert.NotEmpty(t, out["error"], body)
	}
}

func TestStoreConfig_NoConfigFile(t *testing.T) {
	app := testApp(t, "")
	status, out := do(t, app, "POST", "/mini-api-builder/api/config", `{"key":"x","route":"x","columns":["id"]}`)
	assert.Equal(t, 422, status)
	assert.Contains(t, out["error"], "No config file")
}
