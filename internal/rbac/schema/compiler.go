package schema

import (
	"fmt"
	"strings"
)

const (
	prefixEntity     = "ENTITY_"
	prefixTypenames  = "TYPENAMES_"
	prefixTypevalues = "TYPEVALUES_"
	prefixAction     = "ACTION_"
)

// Compiled is the lookup-table form of one scope schema, produced once at
// startup and immutable afterwards. All evaluator work against a scope is a
// key lookup into these maps.
type Compiled struct {
	// LeafActionPaths maps LeafKey(entity chain, type-value chain, action
	// tuple) to the raw schema keys from root to the permission leaf. The
	// path doubles as the navigation key into Role/override documents.
	LeafActionPaths map[string][]string
	// EntityTypenames maps an entity to its ordered branching-type columns.
	EntityTypenames map[string][]string
	// EntityTypevalues maps an entity to the type-value tuples declared
	// under it, in schema order.
	EntityTypevalues map[string][][]string
	// ValidEntityActions maps an entity to the set of action-tuple keys
	// defined for it in this scope.
	ValidEntityActions map[string]map[string]bool
	// EntityActionsToPathEntities maps EntityActionKey(entity, actions) to
	// the set of entities that appear on the schema path for that action,
	// i.e. the entities expected as path parameters rather than context
	// headers.
	EntityActionsToPathEntities map[string]map[string]bool
}

// ActionKey renders an action tuple as a map key.
func ActionKey(actions []string) string {
	return strings.Join(actions, ".")
}

// EntityActionKey renders an (entity, action tuple) pair as a map key.
func EntityActionKey(entity string, actions []string) string {
	return entity + "::" + ActionKey(actions)
}

// LeafKey renders an (entity chain, type-value chain, action tuple) triple as
// a map key. The two chains are parallel: entities without branching types
// contribute an empty tuple.
func LeafKey(entities []string, typevalues [][]string, actions []string) string {
	tuples := make([]string, len(typevalues))
	for i, tv := range typevalues {
		tuples[i] = strings.Join(tv, "__")
	}
	return strings.Join(entities, "/") + "|" + strings.Join(tuples, "/") + "|" + ActionKey(actions)
}

// LookupLeafPath returns the schema key path for the given chains and action
// tuple, if the scope defines it.
func (c *Compiled) LookupLeafPath(entities []string, typevalues [][]string, actions []string) ([]string, bool) {
	path, ok := c.LeafActionPaths[LeafKey(entities, typevalues, actions)]
	return path, ok
}

// HasAction reports whether the action tuple is defined for the entity in
// this scope.
func (c *Compiled) HasAction(entity string, actions []string) bool {
	return c.ValidEntityActions[entity][ActionKey(actions)]
}

type compiler struct {
	knownEntities map[string]bool

	entities   []string
	typevalues [][]string
	actions    []string
	path       []string

	out *Compiled
}

// Compile walks one scope schema depth-first and produces its lookup tables.
// knownEntities is the closed set of entity class names; an ENTITY_ key
// naming anything else is a compile error, as is any key without one of the
// four grammar prefixes.
func Compile(doc *Document, knownEntities map[string]bool) (*Compiled, error) {
	c := &compiler{
		knownEntities: knownEntities,
		out: &Compiled{
			LeafActionPaths:             map[string][]string{},
			EntityTypenames:             map[string][]string{},
			EntityTypevalues:            map[string][][]string{},
			ValidEntityActions:          map[string]map[string]bool{},
			EntityActionsToPathEntities: map[string]map[string]bool{},
		},
	}
	if err := c.walk(doc); err != nil {
		return nil, err
	}
	return c.out, nil
}

func (c *compiler) currentEntity() string {
	if len(c.entities) == 0 {
		return ""
	}
	return c.entities[len(c.entities)-1]
}

// hasTypevalues reports whether any TYPEVALUES_ key has been registered for
// the entity so far. Entities without branching types contribute an empty
// tuple to the type-value chain, pushed lazily when the walk steps past them.
func (c *compiler) hasTypevalues(entity string) bool {
	_, ok := c.out.EntityTypevalues[entity]
	return ok
}

func (c *compiler) walk(node *Document) error {
	for _, key := range node.Keys() {
		value := node.Child(key)
		c.path = append(c.path, key)

		switch {
		case strings.HasPrefix(key, prefixEntity):
			if err := c.enterEntity(key, value); err != nil {
				return err
			}
		case strings.HasPrefix(key, prefixTypenames):
			if err := c.enterTypenames(key, value); err != nil {
				return err
			}
		case strings.HasPrefix(key, prefixTypevalues):
			if err := c.enterTypevalues(key, value); err != nil {
				return err
			}
		case strings.HasPrefix(key, prefixAction):
			if err := c.enterAction(key, value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("schema key '%s' is not prefixed with one of 'ENTITY_', 'TYPENAMES_', 'TYPEVALUES_', 'ACTION_'", key)
		}

		c.path = c.path[:len(c.path)-1]
	}
	return nil
}

func (c *compiler) enterEntity(key string, value *Document) error {
	name := strings.TrimPrefix(key, prefixEntity)
	if !c.knownEntities[name] {
		return fmt.Errorf("entity '%s' does not exist in the entity class map", name)
	}
	if value.IsLeaf() {
		return fmt.Errorf("schema key '%s' must hold a nested object", key)
	}

	parent := c.currentEntity()
	pushedEmpty := false
	if parent != "" && !c.hasTypevalues(parent) {
		c.typevalues = append(c.typevalues, nil)
		pushedEmpty = true
	}
	c.entities = append(c.entities, name)

	err := c.walk(value)

	c.entities = c.entities[:len(c.entities)-1]
	// The parent may have gained type values while this subtree was walked;
	// pop exactly what was pushed.
	if pushedEmpty {
		c.typevalues = c.typevalues[:len(c.typevalues)-1]
	}
	return err
}

func (c *compiler) enterTypenames(key string, value *Document) error {
	entity := c.currentEntity()
	if entity == "" {
		return fmt.Errorf("schema key '%s' must be nested inside an ENTITY_ subtree", key)
	}
	if value.IsLeaf() {
		return fmt.Errorf("schema key '%s' must hold a nested object", key)
	}
	if _, ok := c.out.EntityTypenames[entity]; !ok {
		c.out.EntityTypenames[entity] = strings.Split(strings.TrimPrefix(key, prefixTypenames), "__")
	}
	return c.walk(value)
}

func (c *compiler) enterTypevalues(key string, value *Document) error {
	entity := c.currentEntity()
	if entity == "" {
		return fmt.Errorf("schema key '%s' must be nested inside an ENTITY_ subtree", key)
	}
	if value.IsLeaf() {
		return fmt.Errorf("schema key '%s' must hold a nested object", key)
	}
	values := strings.Split(strings.TrimPrefix(key, prefixTypevalues), "__")

	if !containsTuple(c.out.EntityTypevalues[entity], values) {
		c.out.EntityTypevalues[entity] = append(c.out.EntityTypevalues[entity], values)
	}

	c.typevalues = append(c.typevalues, values)
	err := c.walk(value)
	c.typevalues = c.typevalues[:len(c.typevalues)-1]
	return err
}

func (c *compiler) enterAction(key string, value *Document) error {
	c.actions = append(c.actions, strings.TrimPrefix(key, prefixAction))
	defer func() { c.actions = c.actions[:len(c.actions)-1] }()

	if !value.IsLeaf() {
		return c.walk(value)
	}

	entity := c.currentEntity()
	if entity == "" {
		return fmt.Errorf("schema key '%s' must be nested inside an ENTITY_ subtree", key)
	}

	pushedEmpty := false
	if !c.hasTypevalues(entity) {
		c.typevalues = append(c.typevalues, nil)
		pushedEmpty = true
	}

	c.out.LeafActionPaths[LeafKey(c.entities, c.typevalues, c.actions)] = append([]string(nil), c.path...)

	actionKey := ActionKey(c.actions)
	if _, ok := c.out.ValidEntityActions[entity]; !ok {
		c.out.ValidEntityActions[entity] = map[string]bool{}
	}
	c.out.ValidEntityActions[entity][actionKey] = true

	pathEntities := map[string]bool{}
	for _, e := range c.entities {
		pathEntities[e] = true
	}
	c.out.EntityActionsToPathEntities[EntityActionKey(entity, c.actions)] = pathEntities

	if pushedEmpty {
		c.typevalues = c.typevalues[:len(c.typevalues)-1]
	}
	return nil
}

func containsTuple(tuples [][]string, candidate []string) bool {
	for _, t := range tuples {
		if len(t) != len(candidate) {
			continue
		}
		same := true
		for i := range t {
			if t[i] != candidate[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}
