package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mini-api/internal/config"
)

const existingConfig = `server:
  port: 9000
auth:
  enabled: true
endpoints:
  users:
    route: users
    table: users
    columns: [id, name]
`

type fileShape struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Endpoints map[string]config.EndpointConfig `yaml:"endpoints"`
}

func readShape(t *testing.T, path string) fileShape {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var shape fileShape
	require.NoError(t, yaml.Unmarshal(data, &shape))
	return shape
}

func TestAppendEndpoints_KeepsRestOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(existingConfig), 0o644))

	err := AppendEndpoints(path, []NamedEndpoint{
		{Key: "posts", Endpoint: config.EndpointConfig{Route: "posts", Table: "posts", Columns: []string{"*"}}},
		{Key: "users", Endpoint: config.EndpointConfig{Route: "people", Table: "users", Columns: []string{"id"}}},
	})
	require.NoError(t, err)

	shape := readShape(t, path)
	assert.Equal(t, 9000, shape.Server.Port)
	require.Len(t, shape.Endpoints, 2)
	assert.Equal(t, "people", shape.Endpoints["users"].Route)
	assert.Equal(t, []string{"id"}, shape.Endpoints["users"].Columns)
	assert.Equal(t, []string{"*"}, shape.Endpoints["posts"].Columns)
}

func TestAppendEndpoints_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")

	err := AppendEndpoints(path, []NamedEndpoint{{
		Key: "offers",
		Endpoint: config.EndpointConfig{
			Route:     "offers",
			Model:     "JobOffer",
			Columns:   []string{"title"},
			Relations: []any{"company", map[string]any{"tags": []any{"label"}}},
		},
	}})
	require.NoError(t, err)

	shape := readShape(t, path)
	ep := shape.Endpoints["offers"]
	assert.Equal(t, "JobOffer", ep.Model)
	assert.Empty(t, ep.Table)
	require.Len(t, ep.Relations, 2)
	assert.Equal(t, "company", ep.Relations[0])
}

func TestReplaceEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(existingConfig), 0o644))

	err := ReplaceEndpoints(path, []NamedEndpoint{
		{Key: "job_offers", Endpoint: config.EndpointConfig{Route: "job-offers", Table: "job_offers", Columns: []string{"*"}}},
	})
	require.NoError(t, err)

	shape := readShape(t, path)
	assert.Equal(t, 9000, shape.Server.Port)
	require.Len(t, shape.Endpoints, 1)
	assert.Equal(t, "job-offers", shape.Endpoints["job_offers"].Route)
}

func TestAppendEndpoints_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoints: [1, 2]\n"), 0o644))

	err := AppendEndpoints(path, []NamedEndpoint{{Key: "x", Endpoint: config.EndpointConfig{Table: "x"}}})
	assert.ErrorContains(t, err, "not a mapping")
}

func TestWriteAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	assert.ErrorIs(t, WriteAPIKey(path, "k1", false), ErrEnvMissing)

	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=demo\n"), 0o600))
	require.NoError(t, WriteAPIKey(path, "k1", false))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "APP_NAME=demo\n\nMINI_API_KEY=k1\nMINI_API_AUTH_ENABLED=true\n", string(data))

	assert.ErrorIs(t, WriteAPIKey(path, "k2", false), ErrKeyExists)

	require.NoError(t, WriteAPIKey(path, "k2", true))
	data, _ = os.ReadFile(path)
	assert.Equal(t, "APP_NAME=demo\n\nMINI_API_KEY=k2\nMINI_API_AUTH_ENABLED=true\n", string(data))
}

func TestWriteAPIKey_KeepsExistingAuthFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MINI_API_AUTH_ENABLED=false\n"), 0o600))

	require.NoError(t, WriteAPIKey(path, "abc", false))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "MINI_API_AUTH_ENABLED=false\n\nMINI_API_KEY=abc\n", string(data))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "job_offers", KeySlug("job_offers"))
	assert.Equal(t, "job-offers", RouteSlug("job_offers"))
	assert.Equal(t, "user_profiles", KeySlug("User Profiles"))
	assert.Equal(t, "orders-2024", RouteSlug("Orders 2024!"))
	assert.Equal(t, "", KeySlug("!!!"))
}
