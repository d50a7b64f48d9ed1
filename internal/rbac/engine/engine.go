package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/schema"
	"elevaite-rbac/internal/rbac/util"
)

// Class describes one entity class the engine can resolve from request
// parameters. IntID marks classes whose primary key is an integer rather
// than a UUID.
type Class struct {
	Name  string
	IntID bool
}

// ClassMap is the closed set of entity classes, keyed by the class string
// request parameters resolve to ("project_id" -> "Project").
type ClassMap map[string]Class

// DefaultClasses enumerates every entity class named by an ENTITY_ node in
// any scope schema, plus the classes resolvable from request parameters.
func DefaultClasses() ClassMap {
	return ClassMap{
		model.ClassAccount:       {Name: model.ClassAccount},
		model.ClassProject:       {Name: model.ClassProject},
		model.ClassUser:          {Name: model.ClassUser},
		model.ClassApplication:   {Name: model.ClassApplication, IntID: true},
		model.ClassInstance:      {Name: model.ClassInstance},
		model.ClassConfiguration: {Name: model.ClassConfiguration},
		model.ClassDataset:       {Name: model.ClassDataset},
		model.ClassCollection:    {Name: model.ClassCollection},
		model.ClassApikey:        {Name: model.ClassApikey},
	}
}

// DefaultPrecedenceOrder is the canonical outer-to-inner evaluation order for
// the READ chain. Project comes first; Apikey last. Callers may not reorder:
// reordering changes which scope reports the first failure and can mask
// project-override denies behind account-scope allows.
func DefaultPrecedenceOrder() []string {
	return []string{
		model.ClassProject,
		model.ClassApplication,
		model.ClassConfiguration,
		model.ClassInstance,
		model.ClassDataset,
		model.ClassCollection,
		model.ClassApikey,
	}
}

type scopeTables struct {
	doc      *schema.Document
	compiled *schema.Compiled
}

// Engine is the permission resolution pipeline: compiled scope schemas, the
// entity class map and the precedence order. Immutable after construction
// and safe for concurrent use.
type Engine struct {
	classes    ClassMap
	precedence []string

	accountScope *scopeTables
	projectScope *scopeTables
	apikeyScope  *scopeTables

	logger *slog.Logger
}

// New compiles the three scope schemas and builds an engine value.
func New(classes ClassMap, precedence []string, docs *schema.ScopeDocuments) (*Engine, error) {
	known := make(map[string]bool, len(classes))
	for name := range classes {
		// Probe field names are parsed on the first underscore, so class
		// names must be single tokens.
		if strings.Contains(name, "_") {
			return nil, fmt.Errorf("entity class name '%s' must not contain underscores", name)
		}
		known[name] = true
	}
	for _, name := range precedence {
		if !known[name] {
			return nil, fmt.Errorf("precedence order names unknown entity class '%s'", name)
		}
	}

	account, err := schema.Compile(docs.Account, known)
	if err != nil {
		return nil, fmt.Errorf("failed to compile account-scoped permission schema: %w", err)
	}
	project, err := schema.Compile(docs.Project, known)
	if err != nil {
		return nil, fmt.Errorf("failed to compile project-scoped permission schema: %w", err)
	}
	apikey, err := schema.Compile(docs.Apikey, known)
	if err != nil {
		return nil, fmt.Errorf("failed to compile apikey-scoped permission schema: %w", err)
	}

	return &Engine{
		classes:      classes,
		precedence:   precedence,
		accountScope: &scopeTables{doc: docs.Account, compiled: account},
		projectScope: &scopeTables{doc: docs.Project, compiled: project},
		apikeyScope:  &scopeTables{doc: docs.Apikey, compiled: apikey},
		logger:       util.GetLogger(),
	}, nil
}

// RequestParams is the merged view of a request's path parameters, declared
// context headers and body *_id fields.
type RequestParams map[string]string

// TypeDenial records why one type-value variant of a branching-type target
// was denied, per authority scope.
type TypeDenial struct {
	AccountScopedMessage string
	ProjectScopedMessage string
	ApikeyScopedMessage  string
}

// ValidationInfo is the working state accumulated by a validation call and
// returned to the handler on success: the resolved principal associations and
// entity instances, plus per-type denials for branching-type targets.
type ValidationInfo struct {
	Principal          model.Principal
	AccountAssociation *model.UserAccount
	ProjectAssociation *model.UserProject
	Instances          map[string]model.Entity

	TargetTypenames  []string
	TargetTypevalues [][]string
	TypeDenials      map[string]*TypeDenial
}

// TypeDenialKey names one type-value variant of an entity the way denial
// records and the list filter address it.
func TypeDenialKey(entity string, typenames []string, typevalues []string) string {
	return "ENTITY_" + entity + "_TYPENAMES_" + strings.Join(typenames, "_") + "_TYPEVALUES_" + strings.Join(typevalues, "_")
}

// unavailable logs the real cause with full context and returns the
// client-opaque error.
func (e *Engine) unavailable(msg string, args ...any) *apperror.Error {
	e.logger.Error(msg, args...)
	return apperror.Unavailable()
}
