package schema

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// ScopeDocuments holds the three permission schema documents supplied at
// process start: the account scope (Role.permissions grammar), the project
// scope (User_Project.permission_overrides grammar) and the api-key scope
// (Apikey.permissions grammar).
type ScopeDocuments struct {
	Account *Document
	Project *Document
	Apikey  *Document
}

// Load reads the embedded scope schemas.
func Load() (*ScopeDocuments, error) {
	account, err := loadFile("schemas/account_scoped.json")
	if err != nil {
		return nil, err
	}
	project, err := loadFile("schemas/project_scoped.json")
	if err != nil {
		return nil, err
	}
	apikey, err := loadFile("schemas/apikey_scoped.json")
	if err != nil {
		return nil, err
	}
	return &ScopeDocuments{Account: account, Project: project, Apikey: apikey}, nil
}

func loadFile(name string) (*Document, error) {
	data, err := schemasFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", name, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", name, err)
	}
	return doc, nil
}
