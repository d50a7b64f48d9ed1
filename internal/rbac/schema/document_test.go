package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentPreservesKeyOrder(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"b": "Allow", "a": {"z": "Deny", "y": "Allow"}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, doc.Keys())
	assert.Equal(t, []string{"z", "y"}, doc.Child("a").Keys())
}

func TestParseDocumentRejectsNonStringLeaves(t *testing.T) {
	_, err := ParseDocument([]byte(`{"a": 1}`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`{"a": ["Allow"]}`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`"Allow"`))
	assert.Error(t, err)
}

func TestLookupLeaf(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"a": {"b": {"c": "Deny"}}}`))
	require.NoError(t, err)

	leaf, ok := LookupLeaf(doc, []string{"a", "b", "c"})
	require.True(t, ok)
	assert.Equal(t, "Deny", leaf)

	_, ok = LookupLeaf(doc, []string{"a", "missing"})
	assert.False(t, ok)

	// Path stopping short of a leaf is not a leaf lookup
	_, ok = LookupLeaf(doc, []string{"a", "b"})
	assert.False(t, ok)
}

func TestValidateDocument(t *testing.T) {
	schemaDoc, err := ParseDocument([]byte(`{
		"ENTITY_Project": {
			"ACTION_CREATE": "Allow",
			"ENTITY_Dataset": {"ACTION_READ": "Allow"}
		}
	}`))
	require.NoError(t, err)

	t.Run("conforming document", func(t *testing.T) {
		doc, err := FromMap(map[string]any{
			"ENTITY_Project": map[string]any{
				"ACTION_CREATE": "Deny",
				"ENTITY_Dataset": map[string]any{
					"ACTION_READ": "Allow",
				},
			},
		})
		require.NoError(t, err)
		assert.NoError(t, ValidateDocument(schemaDoc, doc))
	})

	t.Run("missing leaf", func(t *testing.T) {
		doc, err := FromMap(map[string]any{
			"ENTITY_Project": map[string]any{
				"ACTION_CREATE": "Allow",
			},
		})
		require.NoError(t, err)
		assert.ErrorContains(t, ValidateDocument(schemaDoc, doc), "ENTITY_Dataset")
	})

	t.Run("invalid leaf value", func(t *testing.T) {
		doc, err := FromMap(map[string]any{
			"ENTITY_Project": map[string]any{
				"ACTION_CREATE": "Maybe",
				"ENTITY_Dataset": map[string]any{
					"ACTION_READ": "Allow",
				},
			},
		})
		require.NoError(t, err)
		assert.ErrorContains(t, ValidateDocument(schemaDoc, doc), "Maybe")
	})

	t.Run("object where leaf expected", func(t *testing.T) {
		doc, err := FromMap(map[string]any{
			"ENTITY_Project": map[string]any{
				"ACTION_CREATE": map[string]any{"nested": "Allow"},
				"ENTITY_Dataset": map[string]any{
					"ACTION_READ": "Allow",
				},
			},
		})
		require.NoError(t, err)
		assert.Error(t, ValidateDocument(schemaDoc, doc))
	})
}

func TestFromMapRejectsUnsupportedValues(t *testing.T) {
	_, err := FromMap(map[string]any{"a": 3.14})
	assert.Error(t, err)
}

func TestLoadShippedSchemas(t *testing.T) {
	docs, err := Load()
	require.NoError(t, err)
	require.NotNil(t, docs.Account)
	require.NotNil(t, docs.Project)
	require.NotNil(t, docs.Apikey)

	// The project and api-key scopes are strict subsets of the grammar; they
	// must compile with the same entity universe.
	for _, doc := range []*Document{docs.Account, docs.Project, docs.Apikey} {
		_, err := Compile(doc, knownTestEntities())
		assert.NoError(t, err)
	}
}
