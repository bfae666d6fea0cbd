package core

import (
	"encoding/json"
	"testing"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactSchemaV1 = `{
	"type": "object",
	"properties": {"name": {"type": "string"}},
	"required": ["name"]
}`

func registerContactsPlugin(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.RegisterPlugin(schema.Manifest{
		Namespace:     "contacts",
		SchemaVersion: "v1",
		EntityTypes: map[string]schema.EntityTypeDef{
			"person": {
				CurrentSchemaVersion: "v1",
				Schemas:              map[string]json.RawMessage{"v1": json.RawMessage(contactSchemaV1)},
				Indexes:              schema.EntityTypeIndexes{TextFields: []string{"name"}},
			},
		},
	})
	require.NoError(t, err)
}

func TestSaveEntityValidatesAgainstDeclaredSchema(t *testing.T) {
	e := newTestEngine(t)
	registerContactsPlugin(t, e)

	ent, err := e.SaveEntity(SaveEntityInput{
		Namespace: "contacts", EntityType: "person", ID: "alice",
		Data: json.RawMessage(`{"name":"Alice"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", ent.SchemaVersion)

	_, err = e.SaveEntity(SaveEntityInput{
		Namespace: "contacts", EntityType: "person", ID: "bob",
		Data: json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodeEntitySchemaMismatc, rerr.CodeOf(err))
}

func TestSaveEntityRequiresRegisteredNamespace(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SaveEntity(SaveEntityInput{Namespace: "ghost", EntityType: "person", ID: "x", Data: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Equal(t, rerr.CodeMissingNamespace, rerr.CodeOf(err))
}

func TestGetEntityReportsCompatibility(t *testing.T) {
	e := newTestEngine(t)
	registerContactsPlugin(t, e)
	_, err := e.SaveEntity(SaveEntityInput{Namespace: "contacts", EntityType: "person", ID: "alice", Data: json.RawMessage(`{"name":"Alice"}`)})
	require.NoError(t, err)

	ent, compat, err := e.GetEntity("contacts", "person", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", mustExtract(t, ent.Data, "name"))
	assert.Equal(t, "current", compat.Mode)

	_, err = e.GetEntity("contacts", "person", "missing")
	require.Error(t, err)
	assert.Equal(t, rerr.CodeEntityNotFound, rerr.CodeOf(err))
}

func TestListEntitiesReturnsAll(t *testing.T) {
	e := newTestEngine(t)
	registerContactsPlugin(t, e)
	_, err := e.SaveEntity(SaveEntityInput{Namespace: "contacts", EntityType: "person", ID: "alice", Data: json.RawMessage(`{"name":"Alice"}`)})
	require.NoError(t, err)
	_, err = e.SaveEntity(SaveEntityInput{Namespace: "contacts", EntityType: "person", ID: "bob", Data: json.RawMessage(`{"name":"Bob"}`)})
	require.NoError(t, err)

	entities, err := e.ListEntities("contacts", "person")
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestMigratePluginEntitiesDryRunDoesNotWrite(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.RegisterPlugin(schema.Manifest{
		Namespace:     "contacts",
		SchemaVersion: "v1",
		EntityTypes: map[string]schema.EntityTypeDef{
			"person": {
				CurrentSchemaVersion: "v2",
				Schemas: map[string]json.RawMessage{
					"v1": json.RawMessage(contactSchemaV1),
					"v2": json.RawMessage(contactSchemaV1),
				},
			},
		},
	})
	require.NoError(t, err)

	_, err = e.SaveEntity(SaveEntityInput{Namespace: "contacts", EntityType: "person", ID: "carl", SchemaVersion: "v2", Data: json.RawMessage(`{"name":"Carl"}`)})
	require.NoError(t, err)

	result, err := e.MigratePluginEntities("contacts", "person", "", "v1", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.True(t, result.DryRun)
}

func mustExtract(t *testing.T, data json.RawMessage, field string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	v, _ := m[field].(string)
	return v
}
