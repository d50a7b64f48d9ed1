package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
	"elevaite-rbac/internal/rbac/repository"
)

// EvaluatePermissions answers a batch of permission probes against a
// candidate (account?, project?) context without performing any mutation.
// Each probe runs the same pipeline as a real request; a Forbidden outcome is
// recovered into OVERALL_PERMISSIONS=false while every other error class
// propagates unchanged.
func (e *Engine) EvaluatePermissions(
	ctx context.Context,
	store repository.Store,
	principal model.Principal,
	accountID string,
	projectID string,
	probes model.PermissionsEvaluationRequest,
) (model.PermissionsEvaluationResponse, error) {
	if principal == nil {
		return nil, apperror.Unauthorized("authentication required")
	}

	outerParams := RequestParams{}
	if accountID != "" {
		outerParams["account_id"] = accountID
	}
	if projectID != "" {
		outerParams["project_id"] = projectID
	}

	classIDs, err := e.mapClassIDs(outerParams)
	if err != nil {
		return nil, err
	}
	instances, err := e.loadInstances(ctx, store, classIDs)
	if err != nil {
		return nil, err
	}
	if derivedAccountID, ok := e.deriveAccountID(instances); ok {
		derived, err := e.loadInstances(ctx, store, map[string]string{model.ClassAccount: derivedAccountID})
		if err != nil {
			return nil, err
		}
		instances[model.ClassAccount] = derived[model.ClassAccount]
		outerParams["account_id"] = derivedAccountID
	}
	if err := e.validateInterModelAssociations(instances, outerParams); err != nil {
		return nil, err
	}
	assoc, err := e.validateLoggedInAssociations(ctx, store, instances, principal)
	if err != nil {
		return nil, err
	}

	response := model.PermissionsEvaluationResponse{}

	fields := make([]string, 0, len(probes))
	for field := range probes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if probes[field] == nil {
			continue
		}
		result, err := e.evaluateProbe(ctx, store, assoc, instances, outerParams, field, probes[field])
		if err != nil {
			if apperror.IsKind(err, apperror.KindForbidden) {
				response[field] = model.EvaluatedPermission{OverallPermissions: false}
				continue
			}
			return nil, err
		}
		response[field] = result
	}

	return response, nil
}

func (e *Engine) evaluateProbe(
	ctx context.Context,
	store repository.Store,
	assoc *associationInfo,
	outerInstances map[string]model.Entity,
	outerParams RequestParams,
	field string,
	fieldParams map[string]any,
) (model.EvaluatedPermission, error) {
	switch field {
	case model.ProbeIsProjectAdmin:
		if _, ok := outerInstances[model.ClassProject]; !ok {
			return model.EvaluatedPermission{}, apperror.Validation(
				"%s header is required to evaluate '%s' permissions for user", model.HeaderProjectID, field)
		}
		return model.EvaluatedPermission{OverallPermissions: assoc.project != nil && assoc.project.IsAdmin}, nil
	case model.ProbeIsAccountAdmin:
		if _, ok := outerInstances[model.ClassAccount]; !ok {
			return model.EvaluatedPermission{}, apperror.Validation(
				"%s or %s header is required to evaluate '%s' permissions for user",
				model.HeaderAccountID, model.HeaderProjectID, field)
		}
		return model.EvaluatedPermission{OverallPermissions: assoc.isAccountAdmin()}, nil
	}

	targetClass, targetActions, err := e.parseProbeField(field)
	if err != nil {
		return model.EvaluatedPermission{}, err
	}

	accountOnly, err := e.validateProbeScope(assoc, outerInstances, field, targetClass, targetActions)
	if err != nil {
		return model.EvaluatedPermission{}, err
	}

	totalParams := RequestParams{}
	for param, value := range fieldParams {
		totalParams[param] = fmt.Sprint(value)
	}
	for param, value := range outerParams {
		totalParams[param] = value
	}

	fieldClassIDs, err := e.mapClassIDs(totalParams)
	if err != nil {
		return model.EvaluatedPermission{}, err
	}
	for class := range outerInstances {
		delete(fieldClassIDs, class)
	}
	fieldInstances, err := e.loadInstances(ctx, store, fieldClassIDs)
	if err != nil {
		return model.EvaluatedPermission{}, err
	}
	for class, instance := range outerInstances {
		fieldInstances[class] = instance
	}
	if err := e.validateInterModelAssociations(fieldInstances, totalParams); err != nil {
		return model.EvaluatedPermission{}, err
	}

	if accountOnly {
		// A purely account-scoped action must not drag the candidate project
		// into the chain.
		delete(fieldInstances, model.ClassProject)
	}

	info, err := e.validateScopedPermissions(ctx, store, assoc, fieldInstances, targetClass, targetActions)
	if err != nil {
		return model.EvaluatedPermission{}, err
	}

	if e.isElevated(assoc) {
		return e.allTrue(targetClass), nil
	}

	result := model.EvaluatedPermission{OverallPermissions: true}
	if len(info.TargetTypenames) > 0 && len(info.TargetTypevalues) > 0 {
		typenamesKey := strings.Join(info.TargetTypenames, "_")
		specifics := map[string]bool{}
		deniedCount := 0
		for _, typevalues := range info.TargetTypevalues {
			typevaluesKey := strings.Join(typevalues, "_")
			denied := info.TypeDenials[TypeDenialKey(targetClass, info.TargetTypenames, typevalues)] != nil
			specifics[typevaluesKey] = !denied
			if denied {
				deniedCount++
			}
		}
		if deniedCount == len(info.TargetTypevalues) {
			result.OverallPermissions = false
		}
		result.SpecificPermissions = map[string]map[string]bool{typenamesKey: specifics}
	}
	return result, nil
}

// parseProbeField splits "<Entity>_<ACTION>[_<ACTION>...]" on the first
// underscore. Entity class names are single tokens, enforced at engine
// construction, so the split is unambiguous.
func (e *Engine) parseProbeField(field string) (string, []string, error) {
	idx := strings.Index(field, "_")
	if idx <= 0 || idx == len(field)-1 {
		return "", nil, e.unavailable("malformed permission probe field", "field", field)
	}
	targetClass := capitalizeClass(field[:idx])
	targetActions := strings.Split(field[idx+1:], "_")

	if _, ok := e.classes[targetClass]; !ok {
		return "", nil, e.unavailable("no entity class found for permission probe field", "field", field, "class", targetClass)
	}
	if !e.accountScope.compiled.HasAction(targetClass, targetActions) {
		return "", nil, e.unavailable("permission probe action sequence not defined for entity",
			"field", field, "class", targetClass)
	}
	return targetClass, targetActions, nil
}

// validateProbeScope checks the probe's context requirements. Scope support
// is read off the per-scope compiled tables: every account-schema action is
// account-scoped, and it additionally supports project scope when the
// project-scoped schema defines it.
func (e *Engine) validateProbeScope(
	assoc *associationInfo,
	outerInstances map[string]model.Entity,
	field string,
	targetClass string,
	targetActions []string,
) (accountOnly bool, err error) {
	user, isUser := assoc.principal.(*model.User)
	superadmin := isUser && user.IsSuperadmin
	projectScoped := e.projectScope.compiled.HasAction(targetClass, targetActions)

	if projectScoped {
		if !superadmin {
			if _, ok := outerInstances[model.ClassAccount]; !ok {
				return false, apperror.Validation("%s is required to evaluate %s permissions for user", model.HeaderAccountID, field)
			}
		}
		return false, nil
	}

	if !superadmin {
		if _, ok := outerInstances[model.ClassAccount]; !ok {
			return false, apperror.Validation("%s is required to evaluate %s permissions for user", model.HeaderAccountID, field)
		}
	}
	return true, nil
}

func (e *Engine) isElevated(assoc *associationInfo) bool {
	if user, isUser := assoc.principal.(*model.User); isUser && user.IsSuperadmin {
		return true
	}
	return assoc.isAccountAdmin()
}

// allTrue is the short-circuit result for superadmin and account-admin
// principals, with the per-type breakdown filled in for branching targets.
func (e *Engine) allTrue(targetClass string) model.EvaluatedPermission {
	result := model.EvaluatedPermission{OverallPermissions: true}
	typenames := e.accountScope.compiled.EntityTypenames[targetClass]
	typevaluesList := e.accountScope.compiled.EntityTypevalues[targetClass]
	if len(typenames) == 0 || len(typevaluesList) == 0 {
		return result
	}
	specifics := map[string]bool{}
	for _, typevalues := range typevaluesList {
		specifics[strings.Join(typevalues, "_")] = true
	}
	result.SpecificPermissions = map[string]map[string]bool{strings.Join(typenames, "_"): specifics}
	return result
}
