package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsert(t *testing.T) {
	query, args := Upsert("snapshots", []string{"workspace_id", "name"}, []string{"document", "updated_at"},
		[]string{"id", "workspace_id", "name", "document", "updated_at"}, "1", "ws1", "daily", "{}", "now")

	assert.Equal(t,
		"INSERT INTO snapshots (id, workspace_id, name, document, updated_at) VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (workspace_id, name) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at",
		query)
	assert.Equal(t, []any{"1", "ws1", "daily", "{}", "now"}, args)
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", Name: "bramble"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=bramble sslmode=disable", cfg.DSN())
}

func TestJSONB(t *testing.T) {
	var j JSONB[map[string]int]
	assert.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, 1, j.Data["a"])
	assert.Error(t, j.Scan(42))

	v, err := j.Value()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v.([]byte)))
}
