package engine

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

func newMockDB(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewWithDB(db, &store.PostgresDialect{}), mock
}

func expectQuery(mock sqlmock.Sqlmock, sql string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery("^" + regexp.QuoteMeta(sql) + "$")
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"users":               "users",
		"users;--":            "users",
		"../etc":              "etc",
		";;;":                 "",
		"users; DROP TABLE x": "usersDROPTABLEx",
		"job_offers":          "job_offers",
		`"quoted"`:            "quoted",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeIdentifier(in), in)
	}
}

func TestIsSafeJoinColumn(t *testing.T) {
	assert.True(t, IsSafeJoinColumn("name as n"))
	assert.True(t, IsSafeJoinColumn("users.name AS author"))
	assert.True(t, IsSafeJoinColumn("email"))
	assert.False(t, IsSafeJoinColumn("id, (SELECT 1)"))
	assert.False(t, IsSafeJoinColumn("name; DROP TABLE users"))
	assert.False(t, IsSafeJoinColumn("count(*)"))
	assert.False(t, IsSafeJoinColumn(""))
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "n", ResultKey("name as n"))
	assert.Equal(t, "author", ResultKey("users.name AS author"))
	assert.Equal(t, "name", ResultKey("users.name"))
	assert.Equal(t, "email", ResultKey(" email "))
}

func TestBuildTablePlan_SQL(t *testing.T) {
	src := metadata.TableSource{
		Table: "posts",
		Joins: []metadata.JoinSpec{
			{Table: "users", Type: metadata.JoinLeft, ForeignKey: "user_id",
				Columns: []string{"name as author_name", "id, (SELECT 1)"}, Alias: "author"},
			{Table: "categories", Type: "cross", ForeignKey: "category_id", Columns: []string{"categories.label"}},
			{Table: ";;", ForeignKey: "x_id", Columns: []string{"x"}, Alias: "skipped"},
		},
	}

	plan, err := BuildTablePlan(src, []string{"id", "title", "bad col"}, &store.PostgresDialect{}, nil)
	require.NoError(t, err)

	sql, args, err := plan.Query.ToSql()
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Equal(t,
		`SELECT "posts"."id", "posts"."title", name as author_name, categories.label FROM "posts" `+
			`LEFT JOIN "users" ON "posts"."user_id" = "users"."id" `+
			`JOIN "categories" ON "posts"."category_id" = "categories"."id"`,
		sql)

	assert.Equal(t, 2, plan.Joins)
	assert.Equal(t, []string{"id", "title"}, plan.Columns)
	assert.Equal(t, []AliasGroup{{Alias: "author", Keys: []string{"author_name"}}}, plan.Groups)
}

func TestBuildTablePlan_Wildcard(t *testing.T) {
	plan, err := BuildTablePlan(metadata.TableSource{Table: "users"}, []string{"*"}, &store.MySQLDialect{}, nil)
	require.NoError(t, err)

	sql, _, err := plan.Query.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `users`.* FROM `users`", sql)
	assert.Nil(t, plan.Columns)
}

func TestBuildTablePlan_InvalidTable(t *testing.T) {
	_, err := BuildTablePlan(metadata.TableSource{Table: ";;;"}, nil, &store.SQLiteDialect{}, nil)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, KindConfiguration, appErr.Kind)
	assert.Equal(t, MsgInvalidTable, appErr.Message)
}

func TestGroupJoinAliasesAndProject(t *testing.T) {
	row := map[string]any{"id": 1, "title": "Hello", "body": "x", "author_name": "A", "email": "a@x"}
	groups := []AliasGroup{{Alias: "author", Keys: []string{"author_name", "email"}}}

	row = GroupJoinAliases(row, groups)
	assert.Equal(t, map[string]any{"author_name": "A", "email": "a@x"}, row["author"])
	assert.NotContains(t, row, "author_name")

	out := ProjectRow(row, []string{"id", "title"}, groupNames(groups))
	assert.Equal(t, map[string]any{
		"id":     1,
		"title":  "Hello",
		"author": map[string]any{"author_name": "A", "email": "a@x"},
	}, out)

	assert.Equal(t, row, ProjectRow(row, nil, nil))
}

func TestGroupJoinAliases_SharedAlias(t *testing.T) {
	row := map[string]any{"id": 1, "author_name": "A", "label": "news"}
	groups := []AliasGroup{
		{Alias: "meta", Keys: []string{"author_name"}},
		{Alias: "meta", Keys: []string{"label"}},
	}

	row = GroupJoinAliases(row, groups)
	assert.Equal(t, map[string]any{
		"id":   1,
		"meta": map[string]any{"author_name": "A", "label": "news"},
	}, row)
	assert.Equal(t, []string{"meta"}, groupNames(groups))
}

func TestFetch_ModelQueriesUseInLists(t *testing.T) {
	s, mock := newMockDB(t)
	reg := metadata.NewRegistry()
	company := &metadata.Model{Name: "Company", Table: "companies", PrimaryKey: "id"}
	offer := &metadata.Model{Name: "JobOffer", Table: "job_offers", PrimaryKey: "id", Relations: []*metadata.Relation{
		{Name: "company", Type: metadata.BelongsTo, Target: "Company", ForeignKey: "company_id"},
	}}
	ep := &metadata.Endpoint{
		Key:     "offers",
		Route:   "offers",
		Columns: []string{"title"},
		Source:  metadata.ModelSource{Model: "JobOffer", Relations: []metadata.RelationLoad{{Path: "company", Columns: []string{"name"}}}},
	}
	reg.Load(metadata.AuthConfig{}, []*metadata.Endpoint{ep}, []*metadata.Model{company, offer})

	expectQuery(mock, `SELECT "title", "company_id" FROM "job_offers"`).
		WillReturnRows(sqlmock.NewRows([]string{"title", "company_id"}).
			AddRow("Dev", 1).AddRow("Ops", 1).AddRow("QA", 2))
	expectQuery(mock, `SELECT "name", "id" FROM "companies" WHERE "id" IN ($1,$2)`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).AddRow("Acme", 1).AddRow("Globex", 2))

	h := NewHandler(s, reg, nil, nil, 0)
	rows, err := h.Fetch(context.Background(), ep)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{"title": "Dev", "company": map[string]any{"name": "Acme"}}, rows[0])
	assert.Equal(t, map[string]any{"title": "QA", "company": map[string]any{"name": "Globex"}}, rows[2])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_ModelIdentifiersAreSanitized(t *testing.T) {
	s, mock := newMockDB(t)
	reg := metadata.NewRegistry()
	company := &metadata.Model{Name: "Company", Table: "companies\"; DROP TABLE x; --", PrimaryKey: "id"}
	offer := &metadata.Model{Name: "JobOffer", Table: "job_offers;--", PrimaryKey: "id", Relations: []*metadata.Relation{
		{Name: "company", Type: metadata.BelongsTo, Target: "Company", ForeignKey: "company_id;"},
	}}
	broken := &metadata.Model{Name: "Broken", Table: ";;;", PrimaryKey: "id"}
	ep := &metadata.Endpoint{
		Key:     "offers",
		Route:   "offers",
		Columns: []string{"title"},
		Source:  metadata.ModelSource{Model: "JobOffer", Relations: []metadata.RelationLoad{{Path: "company", Columns: []string{"name"}}}},
	}
	bad := &metadata.Endpoint{Key: "broken", Route: "broken", Columns: []string{"id"}, Source: metadata.ModelSource{Model: "Broken"}}
	reg.Load(metadata.AuthConfig{}, []*metadata.Endpoint{ep, bad}, []*metadata.Model{company, offer, broken})

	expectQuery(mock, `SELECT "title", "company_id" FROM "job_offers"`).
		WillReturnRows(sqlmock.NewRows([]string{"title", "company_id"}).AddRow("Dev", 1))
	expectQuery(mock, `SELECT "name", "id" FROM "companiesDROPTABLEx" WHERE "id" IN ($1)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).AddRow("Acme", 1))

	h := NewHandler(s, reg, nil, nil, 0)
	rows, err := h.Fetch(context.Background(), ep)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"title": "Dev", "company": map[string]any{"name": "Acme"}}}, rows)

	_, err = h.Fetch(context.Background(), bad)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, MsgInvalidModel, appErr.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_ReleasesConnectionOnError(t *testing.T) {
	s, mock := newMockDB(t)
	reg := metadata.NewRegistry()
	ep := &metadata.Endpoint{Key: "users", Route: "users", Source: metadata.TableSource{Table: "users"}}
	reg.Load(metadata.AuthConfig{}, []*metadata.Endpoint{ep}, nil)

	expectQuery(mock, `SELECT "users".* FROM "users"`).WillReturnError(errors.New("connection reset"))

	h := NewHandler(s, reg, nil, nil, 0)
	_, err := h.Fetch(context.Background(), ep)
	require.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 0, s.DB.Stats().InUse)
	require.NoError(t, mock.ExpectationsWereMet())
}
