package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"elevaite-rbac/internal/rbac/schema"
)

// Fixture ids
const (
	accountID1 = "aaaaaaaa-0000-0000-0000-000000000001"
	accountID2 = "aaaaaaaa-0000-0000-0000-000000000002"
	projectID1 = "bbbbbbbb-0000-0000-0000-000000000001"
	parentID1  = "bbbbbbbb-0000-0000-0000-000000000099"
	userID1    = "cccccccc-0000-0000-0000-000000000001"
	apikeyID1  = "dddddddd-0000-0000-0000-000000000001"
	datasetID1 = "eeeeeeee-0000-0000-0000-000000000001"
	uaID1      = "ffffffff-0000-0000-0000-000000000001"
)

// The account scope used by engine tests. Ordering of TYPEVALUES_ subtrees is
// load-bearing: ingest before preprocess.
const testAccountSchema = `{
  "ENTITY_Project": {
    "ACTION_READ": "Allow",
    "ACTION_CREATE": "Allow",
    "ENTITY_Dataset": {"ACTION_READ": "Allow", "ACTION_TAG": "Allow"},
    "ENTITY_Collection": {"ACTION_READ": "Allow", "ACTION_CREATE": "Allow"}
  },
  "ENTITY_Application": {
    "TYPENAMES_applicationType": {
      "TYPEVALUES_ingest": {
        "ENTITY_Configuration": {"ACTION_READ": "Allow", "ACTION_CREATE": "Allow"},
        "ACTION_READ": "Allow"
      },
      "TYPEVALUES_preprocess": {
        "ENTITY_Configuration": {"ACTION_READ": "Allow", "ACTION_CREATE": "Allow"},
        "ACTION_READ": "Allow"
      }
    }
  }
}`

const testProjectSchema = `{
  "ENTITY_Project": {
    "ACTION_CREATE": "Allow",
    "ENTITY_Dataset": {"ACTION_READ": "Allow", "ACTION_TAG": "Allow"},
    "ENTITY_Collection": {"ACTION_READ": "Allow", "ACTION_CREATE": "Allow"}
  },
  "ENTITY_Application": {
    "TYPENAMES_applicationType": {
      "TYPEVALUES_ingest": {
        "ENTITY_Configuration": {"ACTION_CREATE": "Allow"},
        "ACTION_READ": "Allow"
      },
      "TYPEVALUES_preprocess": {
        "ENTITY_Configuration": {"ACTION_CREATE": "Allow"},
        "ACTION_READ": "Allow"
      }
    }
  }
}`

const testApikeySchema = `{
  "ENTITY_Project": {
    "ENTITY_Dataset": {"ACTION_READ": "Allow", "ACTION_TAG": "Allow"}
  }
}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	account, err := schema.ParseDocument([]byte(testAccountSchema))
	require.NoError(t, err)
	project, err := schema.ParseDocument([]byte(testProjectSchema))
	require.NoError(t, err)
	apikey, err := schema.ParseDocument([]byte(testApikeySchema))
	require.NoError(t, err)

	eng, err := New(DefaultClasses(), DefaultPrecedenceOrder(), &schema.ScopeDocuments{
		Account: account,
		Project: project,
		Apikey:  apikey,
	})
	require.NoError(t, err)
	return eng
}

// projectOverrides builds a User_Project override document conforming to the
// test project scope, all-Allow, then applies denies at the given leaf paths.
func projectOverrides(denies ...[]string) map[string]any {
	doc := map[string]any{
		"ENTITY_Project": map[string]any{
			"ACTION_CREATE": "Allow",
			"ENTITY_Dataset": map[string]any{
				"ACTION_READ": "Allow",
				"ACTION_TAG":  "Allow",
			},
			"ENTITY_Collection": map[string]any{
				"ACTION_READ":   "Allow",
				"ACTION_CREATE": "Allow",
			},
		},
		"ENTITY_Application": map[string]any{
			"TYPENAMES_applicationType": map[string]any{
				"TYPEVALUES_ingest": map[string]any{
					"ENTITY_Configuration": map[string]any{
						"ACTION_CREATE": "Allow",
					},
					"ACTION_READ": "Allow",
				},
				"TYPEVALUES_preprocess": map[string]any{
					"ENTITY_Configuration": map[string]any{
						"ACTION_CREATE": "Allow",
					},
					"ACTION_READ": "Allow",
				},
			},
		},
	}
	for _, deny := range denies {
		setLeaf(doc, deny, "Deny")
	}
	return doc
}

// apikeyPermissions builds an Apikey permissions document conforming to the
// test api-key scope.
func apikeyPermissions(denies ...[]string) map[string]any {
	doc := map[string]any{
		"ENTITY_Project": map[string]any{
			"ENTITY_Dataset": map[string]any{
				"ACTION_READ": "Allow",
				"ACTION_TAG":  "Allow",
			},
		},
	}
	for _, deny := range denies {
		setLeaf(doc, deny, "Deny")
	}
	return doc
}

func setLeaf(doc map[string]any, path []string, value string) {
	cur := doc
	for _, key := range path[:len(path)-1] {
		cur = cur[key].(map[string]any)
	}
	cur[path[len(path)-1]] = value
}

func TestNewEngineRejectsUnderscoredClassNames(t *testing.T) {
	account, err := schema.ParseDocument([]byte(`{}`))
	require.NoError(t, err)

	classes := DefaultClasses()
	classes["Library_Widget"] = Class{Name: "Library_Widget"}

	_, err = New(classes, DefaultPrecedenceOrder(), &schema.ScopeDocuments{
		Account: account, Project: account, Apikey: account,
	})
	require.ErrorContains(t, err, "underscore")
}

func TestNewEngineRejectsUnknownPrecedenceEntry(t *testing.T) {
	account, err := schema.ParseDocument([]byte(`{}`))
	require.NoError(t, err)

	_, err = New(DefaultClasses(), []string{"Widget"}, &schema.ScopeDocuments{
		Account: account, Project: account, Apikey: account,
	})
	require.ErrorContains(t, err, "Widget")
}
