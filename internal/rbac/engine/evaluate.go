package engine

import (
	"context"
	"fmt"
	"strings"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
	"elevaite-rbac/internal/rbac/schema"
)

// ValidateRBACPermissions is the decision function for one request. params is
// the merged view of path parameters, declared context headers and body *_id
// fields; targetClass and targetActions are declared by the handler at mount
// time. On success the resolved entity instances and permission-validation
// state are returned so the handler does not re-query.
//
// Resolution happens in two phases: account and project first, so the
// principal's identity-level associations are settled before any other
// parameter is even looked at; then the remaining parameters.
func (e *Engine) ValidateRBACPermissions(
	ctx context.Context,
	store repository.Store,
	principal model.Principal,
	params RequestParams,
	targetClass string,
	targetActions []string,
) (*ValidationInfo, error) {
	if principal == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	if len(targetActions) == 0 {
		return nil, e.unavailable("empty target action tuple", "target", targetClass)
	}

	merged := RequestParams{}
	for k, v := range params {
		merged[k] = v
	}

	scopeParams := RequestParams{}
	if v, ok := merged["account_id"]; ok {
		scopeParams["account_id"] = v
	}
	if v, ok := merged["project_id"]; ok {
		scopeParams["project_id"] = v
	}

	classIDs, err := e.mapClassIDs(scopeParams)
	if err != nil {
		return nil, err
	}
	instances, err := e.loadInstances(ctx, store, classIDs)
	if err != nil {
		return nil, err
	}

	if accountID, ok := e.deriveAccountID(instances); ok {
		derived, err := e.loadInstances(ctx, store, map[string]string{model.ClassAccount: accountID})
		if err != nil {
			return nil, err
		}
		instances[model.ClassAccount] = derived[model.ClassAccount]
		merged["account_id"] = accountID
		scopeParams["account_id"] = accountID
	}

	if err := e.validateInterModelAssociations(instances, scopeParams); err != nil {
		return nil, err
	}

	assoc, err := e.validateLoggedInAssociations(ctx, store, instances, principal)
	if err != nil {
		return nil, err
	}

	remainingIDs, err := e.mapClassIDs(merged)
	if err != nil {
		return nil, err
	}
	for class := range instances {
		delete(remainingIDs, class)
	}
	remaining, err := e.loadInstances(ctx, store, remainingIDs)
	if err != nil {
		return nil, err
	}
	for class, instance := range remaining {
		instances[class] = instance
	}

	if err := e.validateInterModelAssociations(instances, merged); err != nil {
		return nil, err
	}

	info, err := e.validateScopedPermissions(ctx, store, assoc, instances, targetClass, targetActions)
	if err != nil {
		return nil, err
	}
	info.Instances = instances
	return info, nil
}

// chainState carries the cumulative entity / typename / type-value sequences
// for one side of the precedence walk (path-parameter entities and
// header-supplied entities form separate chains).
type chainState struct {
	entities   []string
	typenames  [][]string
	typevalues [][]string
}

func (s *chainState) push(entity string, typenames []string, typevalues []string) {
	s.entities = append(s.entities, entity)
	s.typenames = append(s.typenames, typenames)
	s.typevalues = append(s.typevalues, typevalues)
}

// validateScopedPermissions composes the four authority sources in precedence
// order: superadmin, account admin, role-based allow, project/api-key
// override deny. Entities resolved for the request are READ-checked outer to
// inner before the target action itself is checked.
func (e *Engine) validateScopedPermissions(
	ctx context.Context,
	store repository.Store,
	assoc *associationInfo,
	instances map[string]model.Entity,
	targetClass string,
	targetActions []string,
) (*ValidationInfo, error) {
	info := &ValidationInfo{
		Principal:          assoc.principal,
		AccountAssociation: assoc.account,
		ProjectAssociation: assoc.project,
		TypeDenials:        map[string]*TypeDenial{},
	}

	if user, isUser := assoc.principal.(*model.User); isUser {
		if user.IsSuperadmin {
			return info, nil
		}
		if _, ok := instances[model.ClassAccount]; !ok {
			return nil, apperror.Forbidden("you do not have superadmin permissions and must provide an account_id")
		}
		if assoc.isAccountAdmin() {
			return info, nil
		}
	}

	pathEntitySet := e.accountScope.compiled.EntityActionsToPathEntities[schema.EntityActionKey(targetClass, targetActions)]

	pathChain := &chainState{}
	headerChain := &chainState{}
	readAction := []string{model.ActionRead}
	targetVisited := false

	for _, class := range e.precedence {
		instance, ok := instances[class]
		if !ok {
			continue
		}
		if class == targetClass {
			targetVisited = true
		}

		chain := headerChain
		if pathEntitySet[class] {
			chain = pathChain
		}

		typenames, typevalues, err := e.instanceTypeValues(class, instance)
		if err != nil {
			return nil, err
		}
		chain.push(class, typenames, typevalues)

		msgs := e.permissionMessages(class, chain, readAction, instances)
		accountPath, err := e.accountLeafPath(class, chain.entities, chain.typevalues, readAction)
		if err != nil {
			return nil, err
		}
		overridePath, overrideOK := e.overrideLeafPath(assoc.principal, chain.entities, chain.typevalues, readAction)

		// Along the READ chain an api-key path missing from its scope is
		// skipped, not denied: the chain may pass through account-level
		// entities on the way to an api-key-scoped target.
		if err := e.enforce(ctx, store, assoc, accountPath, overridePath, overrideOK, msgs, false); err != nil {
			return nil, err
		}
	}

	if !targetVisited {
		typenames := e.accountScope.compiled.EntityTypenames[targetClass]
		typevaluesList := e.accountScope.compiled.EntityTypevalues[targetClass]
		info.TargetTypenames = typenames
		info.TargetTypevalues = typevaluesList

		if len(typenames) > 0 {
			// The target could not be resolved from the request (e.g. a
			// CREATE), so every declared type-value variant is checked and
			// denials are recorded instead of raised; callers aggregate.
			for _, typevalues := range typevaluesList {
				pathChain.push(targetClass, typenames, typevalues)
				msgs := e.permissionMessages(targetClass, pathChain, targetActions, instances)
				accountPath, err := e.accountLeafPath(targetClass, pathChain.entities, pathChain.typevalues, targetActions)
				if err != nil {
					return nil, err
				}
				overridePath, overrideOK := e.overrideLeafPath(assoc.principal, pathChain.entities, pathChain.typevalues, targetActions)

				key := TypeDenialKey(targetClass, typenames, typevalues)
				if err := e.recordTypeDenial(ctx, store, assoc, info, key, accountPath, overridePath, overrideOK, msgs); err != nil {
					return nil, err
				}

				pathChain.entities = pathChain.entities[:len(pathChain.entities)-1]
				pathChain.typenames = pathChain.typenames[:len(pathChain.typenames)-1]
				pathChain.typevalues = pathChain.typevalues[:len(pathChain.typevalues)-1]
			}
			return info, nil
		}

		pathChain.push(targetClass, nil, nil)
		msgs := e.permissionMessages(targetClass, pathChain, targetActions, instances)
		accountPath, err := e.accountLeafPath(targetClass, pathChain.entities, pathChain.typevalues, targetActions)
		if err != nil {
			return nil, err
		}
		overridePath, overrideOK := e.overrideLeafPath(assoc.principal, pathChain.entities, pathChain.typevalues, targetActions)
		if err := e.enforce(ctx, store, assoc, accountPath, overridePath, overrideOK, msgs, true); err != nil {
			return nil, err
		}
		return info, nil
	}

	if schema.ActionKey(targetActions) != model.ActionRead {
		msgs := e.permissionMessages(targetClass, pathChain, targetActions, instances)
		accountPath, err := e.accountLeafPath(targetClass, pathChain.entities, pathChain.typevalues, targetActions)
		if err != nil {
			return nil, err
		}
		overridePath, overrideOK := e.overrideLeafPath(assoc.principal, pathChain.entities, pathChain.typevalues, targetActions)
		if err := e.enforce(ctx, store, assoc, accountPath, overridePath, overrideOK, msgs, true); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// instanceTypeValues reads the branching-type columns declared for the class
// off the resolved instance.
func (e *Engine) instanceTypeValues(class string, instance model.Entity) ([]string, []string, error) {
	typenames, ok := e.accountScope.compiled.EntityTypenames[class]
	if !ok {
		return nil, nil, nil
	}
	typevalues := make([]string, 0, len(typenames))
	for _, column := range typenames {
		value, ok := instance.Field(column)
		if !ok {
			return nil, nil, e.unavailable("entity instance is missing a branching-type column",
				"class", class, "column", column)
		}
		typevalues = append(typevalues, value)
	}
	return typenames, typevalues, nil
}

// accountLeafPath resolves the account-scope leaf path for the chain; a miss
// means the handler declared a target/action the schema does not define.
func (e *Engine) accountLeafPath(class string, entities []string, typevalues [][]string, actions []string) ([]string, error) {
	if !e.accountScope.compiled.HasAction(class, actions) {
		return nil, e.unavailable("action sequence not found in account-scoped permission schema",
			"class", class, "actions", schema.ActionKey(actions))
	}
	path, ok := e.accountScope.compiled.LookupLeafPath(entities, typevalues, actions)
	if !ok {
		return nil, e.unavailable("action path not found in account-scoped permission schema",
			"class", class, "entities", strings.Join(entities, ","), "actions", schema.ActionKey(actions))
	}
	return path, nil
}

// overrideLeafPath resolves the equivalent path in the principal's override
// scope (project overrides for users, the key's own permissions for api
// keys). Absence is a meaningful outcome, not an error: some actions are
// purely account-scoped.
func (e *Engine) overrideLeafPath(principal model.Principal, entities []string, typevalues [][]string, actions []string) ([]string, bool) {
	scope := e.projectScope
	if _, isKey := principal.(*model.Apikey); isKey {
		scope = e.apikeyScope
	}
	return scope.compiled.LookupLeafPath(entities, typevalues, actions)
}

// enforce runs the role-based allow check and the override deny check for one
// chain position. missingOverrideDenies selects the api-key behavior: along
// the READ chain a path absent from the api-key scope is skipped, but at the
// target it denies (api keys are deny-by-default outside their declared
// surface).
func (e *Engine) enforce(
	ctx context.Context,
	store repository.Store,
	assoc *associationInfo,
	accountPath []string,
	overridePath []string,
	overrideOK bool,
	msgs checkMessages,
	missingOverrideDenies bool,
) error {
	switch assoc.principal.(type) {
	case *model.User:
		allowed, err := store.HasAllowedRolePermission(ctx, assoc.account.ID, accountPath)
		if err != nil {
			return e.unavailable("failed to evaluate role-based permission",
				"user_account_id", assoc.account.ID, "error", err)
		}
		if !allowed {
			return apperror.Forbidden("%s", msgs.account)
		}
		if assoc.project != nil && overrideOK {
			denied, err := e.overrideDenied(assoc, overridePath)
			if err != nil {
				return err
			}
			if denied {
				return apperror.Forbidden("%s", msgs.project)
			}
		}
	case *model.Apikey:
		if !overrideOK {
			if missingOverrideDenies {
				return apperror.Forbidden("%s", msgs.apikey)
			}
			return nil
		}
		denied, err := e.overrideDenied(assoc, overridePath)
		if err != nil {
			return err
		}
		if denied {
			return apperror.Forbidden("%s", msgs.apikey)
		}
	}
	return nil
}

// recordTypeDenial runs the same checks as enforce for one type-value
// variant of an unresolved target, recording outcomes instead of raising.
func (e *Engine) recordTypeDenial(
	ctx context.Context,
	store repository.Store,
	assoc *associationInfo,
	info *ValidationInfo,
	key string,
	accountPath []string,
	overridePath []string,
	overrideOK bool,
	msgs checkMessages,
) error {
	record := func() *TypeDenial {
		if info.TypeDenials[key] == nil {
			info.TypeDenials[key] = &TypeDenial{}
		}
		return info.TypeDenials[key]
	}

	switch assoc.principal.(type) {
	case *model.User:
		allowed, err := store.HasAllowedRolePermission(ctx, assoc.account.ID, accountPath)
		if err != nil {
			return e.unavailable("failed to evaluate role-based permission",
				"user_account_id", assoc.account.ID, "error", err)
		}
		if !allowed {
			record().AccountScopedMessage = msgs.account
		}
		if assoc.project != nil && overrideOK {
			denied, err := e.overrideDenied(assoc, overridePath)
			if err != nil {
				return err
			}
			if denied {
				record().ProjectScopedMessage = msgs.project
			}
		}
	case *model.Apikey:
		if !overrideOK {
			record().ApikeyScopedMessage = msgs.apikey
			return nil
		}
		denied, err := e.overrideDenied(assoc, overridePath)
		if err != nil {
			return err
		}
		if denied {
			record().ApikeyScopedMessage = msgs.apikey
		}
	}
	return nil
}

type checkMessages struct {
	account string
	project string
	apikey  string
}

// permissionMessages builds the denial detail strings for one chain
// position. They name the action tuple, target entity, type configurations
// and scope ids, and nothing else: never role names or override contents.
func (e *Engine) permissionMessages(targetClass string, chain *chainState, actions []string, instances map[string]model.Entity) checkMessages {
	var configurations []string
	for i, entity := range chain.entities {
		if len(chain.typenames[i]) == 0 {
			continue
		}
		pairs := make([]string, 0, len(chain.typenames[i]))
		for j, typename := range chain.typenames[i] {
			value := ""
			if j < len(chain.typevalues[i]) {
				value = chain.typevalues[i][j]
			}
			pairs = append(pairs, typename+":"+value)
		}
		configurations = append(configurations, fmt.Sprintf("Resource - %s, Types - [%s]", entity, strings.Join(pairs, ", ")))
	}

	configClause := ""
	if len(configurations) > 0 {
		configClause = "under the following configurations - (" + strings.Join(configurations, "; ") + ") - "
	}

	actionKey := schema.ActionKey(actions)
	accountID := ""
	if account, ok := instances[model.ClassAccount]; ok {
		accountID = account.PrimaryKey()
	}

	msgs := checkMessages{
		account: fmt.Sprintf(
			"you do not have superadmin/account-admin privileges and you do not have account-specific role-based access permissions to perform the action sequence - '%s' - on '%s' resources %sin account - '%s'",
			actionKey, targetClass, configClause, accountID),
	}

	if project, ok := instances[model.ClassProject]; ok {
		msgs.project = fmt.Sprintf(
			"you are denied permissions to perform the action sequence - '%s' - on '%s' resources %sdue to project-specific permission overrides in project - '%s'",
			actionKey, targetClass, configClause, project.PrimaryKey())
		msgs.apikey = fmt.Sprintf(
			"you are denied permissions to perform the action sequence - '%s' - on '%s' resources %sdue to apikey-specific permission overrides in project - '%s'",
			actionKey, targetClass, configClause, project.PrimaryKey())
	}

	return msgs
}
