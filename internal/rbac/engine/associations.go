package engine

import (
	"context"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
	"elevaite-rbac/internal/rbac/schema"
)

// associationInfo carries the principal's resolved account and project
// associations through one validation call, together with the lazily parsed
// override document.
type associationInfo struct {
	principal model.Principal
	account   *model.UserAccount
	project   *model.UserProject

	overrides       *schema.Document
	overridesParsed bool
}

func (a *associationInfo) isAccountAdmin() bool {
	return a.account != nil && a.account.IsAdmin
}

// validateLoggedInAssociations performs the identity-level association check:
// before any permission math, a non-superadmin user must be a member of the
// account in scope and, unless an account admin, associated to the project in
// scope and to every project on the chain from its parent up to the top-level
// ancestor. An api
// key is intrinsically project-bound and must match the project in scope.
func (e *Engine) validateLoggedInAssociations(
	ctx context.Context,
	store repository.Store,
	instances map[string]model.Entity,
	principal model.Principal,
) (*associationInfo, error) {
	info := &associationInfo{principal: principal}

	user, isUser := principal.(*model.User)
	if !isUser {
		apikey := principal.(*model.Apikey)
		project, ok := instances[model.ClassProject]
		if !ok || project.PrimaryKey() != apikey.ProjectID {
			return nil, apperror.Forbidden("your permissions are restricted to resources within project - '%s'", apikey.ProjectID)
		}
		return info, nil
	}

	if account, ok := instances[model.ClassAccount]; ok {
		association, err := store.GetUserAccount(ctx, user.ID, account.PrimaryKey())
		if err != nil {
			return nil, e.unavailable("failed to load user/account association",
				"user_id", user.ID, "account_id", account.PrimaryKey(), "error", err)
		}
		if association == nil && !user.IsSuperadmin {
			return nil, apperror.Forbidden("you are not assigned to account - '%s'", account.PrimaryKey())
		}
		info.account = association
	}

	if project, ok := instances[model.ClassProject]; ok {
		association, err := store.GetUserProject(ctx, user.ID, project.PrimaryKey())
		if err != nil {
			return nil, e.unavailable("failed to load user/project association",
				"user_id", user.ID, "project_id", project.PrimaryKey(), "error", err)
		}
		if association == nil && !user.IsSuperadmin && !info.isAccountAdmin() {
			return nil, apperror.Forbidden("you are not assigned to project - '%s'", project.PrimaryKey())
		}
		info.project = association

		if !user.IsSuperadmin && !info.isAccountAdmin() {
			if parentID, ok := project.Field("parent_project_id"); ok {
				associated, err := store.IsUserAssociatedUpToRoot(ctx, user.ID, parentID)
				if err != nil {
					return nil, e.unavailable("failed to walk project ancestry",
						"user_id", user.ID, "starting_project_id", parentID, "error", err)
				}
				if !associated {
					return nil, apperror.Forbidden("you are not assigned to one or more projects in the project hierarchy of parent project - '%s'", parentID)
				}
			}
		}
	}

	return info, nil
}

// overrideDocument parses and validates the principal's override document
// against its scope schema, once per request. A document that does not
// conform is a data problem the engine will not guess around.
func (e *Engine) overrideDocument(assoc *associationInfo) (*schema.Document, error) {
	if assoc.overridesParsed {
		return assoc.overrides, nil
	}

	switch p := assoc.principal.(type) {
	case *model.User:
		if assoc.project == nil {
			assoc.overridesParsed = true
			return nil, nil
		}
		doc, err := schema.FromMap(assoc.project.PermissionOverrides)
		if err == nil {
			err = schema.ValidateDocument(e.projectScope.doc, doc)
		}
		if err != nil {
			return nil, e.unavailable("malformed project permission overrides",
				"user_id", assoc.project.UserID, "project_id", assoc.project.ProjectID, "error", err)
		}
		assoc.overrides = doc
	case *model.Apikey:
		doc, err := schema.FromMap(p.Permissions)
		if err == nil {
			err = schema.ValidateDocument(e.apikeyScope.doc, doc)
		}
		if err != nil {
			return nil, e.unavailable("malformed apikey permissions",
				"apikey_id", p.ID, "project_id", p.ProjectID, "error", err)
		}
		assoc.overrides = doc
	}

	assoc.overridesParsed = true
	return assoc.overrides, nil
}

// overrideDenied walks the principal's override document along path and
// reports whether the leaf denies. Project admins are never denied by
// overrides; users without a project association have nothing to walk.
func (e *Engine) overrideDenied(assoc *associationInfo, path []string) (bool, error) {
	if _, isUser := assoc.principal.(*model.User); isUser {
		if assoc.project == nil || assoc.project.IsAdmin {
			return false, nil
		}
	}

	doc, err := e.overrideDocument(assoc)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}

	leaf, ok := schema.LookupLeaf(doc, path)
	if !ok {
		return false, e.unavailable("permission override document is missing a schema path",
			"path", path)
	}
	return leaf == model.PermissionDeny, nil
}
