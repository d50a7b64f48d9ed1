package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

// mapClassIDs scans params for *_id keys and resolves each to an entity
// class. A parameter whose stem is not a known class is a wiring mistake on
// the route, not a client error.
func (e *Engine) mapClassIDs(params RequestParams) (map[string]string, error) {
	classIDs := map[string]string{}
	for param, value := range params {
		if !strings.HasSuffix(param, "_id") {
			continue
		}
		candidate := capitalizeClass(strings.TrimSuffix(param, "_id"))
		if _, ok := e.classes[candidate]; !ok {
			return nil, e.unavailable("invalid entity class derived from request parameter",
				"class", candidate, "param", param)
		}
		classIDs[candidate] = value
	}
	return classIDs, nil
}

func capitalizeClass(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// loadInstances materializes one row per referenced class. Malformed ids are
// a client error; missing rows are not found; anything else is the store
// failing.
func (e *Engine) loadInstances(ctx context.Context, store repository.Store, classIDs map[string]string) (map[string]model.Entity, error) {
	instances := map[string]model.Entity{}
	for class, id := range classIDs {
		if id == "" {
			continue
		}
		if err := e.validateID(class, id); err != nil {
			return nil, err
		}
		instance, err := store.FindEntity(ctx, class, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.NotFound("%s - '%s' - not found", class, id)
			}
			return nil, e.unavailable("failed to load entity instance", "class", class, "id", id, "error", err)
		}
		instances[class] = instance
	}
	return instances, nil
}

func (e *Engine) validateID(class, id string) error {
	if e.classes[class].IntID {
		if _, err := strconv.Atoi(id); err != nil {
			return apperror.Validation("%s id - '%s' - is not a valid integer", class, id)
		}
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperror.Validation("%s id - '%s' - is not a valid UUID", class, id)
	}
	return nil
}

// validateInterModelAssociations cross-checks every resolved instance of a
// class in the precedence order against every *_id parameter it carries an
// attribute for, in precedence order. A mismatch means the request names
// entities that do not belong together.
func (e *Engine) validateInterModelAssociations(instances map[string]model.Entity, params RequestParams) error {
	for _, class := range e.precedence {
		instance, ok := instances[class]
		if !ok {
			continue
		}
		for param, value := range params {
			if !strings.HasSuffix(param, "_id") {
				continue
			}
			attr, ok := instance.Field(snakeToCamel(param))
			if !ok {
				attr, ok = instance.Field(param)
			}
			if !ok {
				continue
			}
			if attr != value {
				return apperror.Validation("%s - '%s' - is not associated to %s - '%s'",
					class, instance.PrimaryKey(), param, value)
			}
		}
	}
	return nil
}

// deriveAccountID extends a resolution with the account owning the resolved
// project when the request named only the project.
func (e *Engine) deriveAccountID(instances map[string]model.Entity) (string, bool) {
	project, ok := instances[model.ClassProject]
	if !ok {
		return "", false
	}
	if _, ok := instances[model.ClassAccount]; ok {
		return "", false
	}
	accountID, ok := project.Field("account_id")
	return accountID, ok
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
