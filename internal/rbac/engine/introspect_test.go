package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"elevaite-rbac/internal/rbac/apperror"
	"elevaite-rbac/internal/rbac/model"
)

// Per-type partition: a role-based allow on Application READ combined with a
// project override denying the preprocess variant yields a split
// SPECIFIC_PERMISSIONS breakdown with OVERALL true.
func TestEvaluatePerTypePartition(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	overrides := projectOverrides([]string{
		"ENTITY_Application", "TYPENAMES_applicationType", "TYPEVALUES_preprocess", "ACTION_READ",
	})

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("FindEntity", mock.Anything, model.ClassProject, projectID1).
		Return(&model.Project{ID: projectID1, AccountID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)
	store.On("GetUserProject", mock.Anything, userID1, projectID1).
		Return(&model.UserProject{ID: "up-1", UserID: userID1, ProjectID: projectID1, PermissionOverrides: overrides}, nil)
	store.On("HasAllowedRolePermission", mock.Anything, uaID1, mock.Anything).
		Return(true, nil)

	response, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, projectID1, model.PermissionsEvaluationRequest{
			"Application_READ": {},
		})
	require.NoError(t, err)

	result := response["Application_READ"]
	assert.True(t, result.OverallPermissions)
	require.Contains(t, result.SpecificPermissions, "applicationType")
	assert.Equal(t, map[string]bool{"ingest": true, "preprocess": false}, result.SpecificPermissions["applicationType"])
}

// When every variant is denied, OVERALL flips to false.
func TestEvaluateAllVariantsDenied(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)
	store.On("HasAllowedRolePermission", mock.Anything, uaID1, mock.Anything).
		Return(false, nil)

	response, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			"Application_READ": {},
		})
	require.NoError(t, err)

	result := response["Application_READ"]
	assert.False(t, result.OverallPermissions)
	assert.Equal(t, map[string]bool{"ingest": false, "preprocess": false}, result.SpecificPermissions["applicationType"])
}

// A denied non-branching probe is recovered into OVERALL=false rather than
// failing the batch; an allowed one stays true with no specifics.
func TestEvaluateForbiddenRecoveredPerProbe(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)
	store.On("HasAllowedRolePermission", mock.Anything, uaID1, []string{"ENTITY_Project", "ACTION_CREATE"}).
		Return(false, nil)
	store.On("HasAllowedRolePermission", mock.Anything, uaID1, []string{"ENTITY_Project", "ACTION_READ"}).
		Return(true, nil)

	response, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			"Project_CREATE": {},
			"Project_READ":   {},
		})
	require.NoError(t, err)

	assert.False(t, response["Project_CREATE"].OverallPermissions)
	assert.Nil(t, response["Project_CREATE"].SpecificPermissions)
	assert.True(t, response["Project_READ"].OverallPermissions)
	assert.Nil(t, response["Project_READ"].SpecificPermissions)
}

func TestEvaluateAdminProbes(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("FindEntity", mock.Anything, model.ClassProject, projectID1).
		Return(&model.Project{ID: projectID1, AccountID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1, IsAdmin: true}, nil)
	store.On("GetUserProject", mock.Anything, userID1, projectID1).
		Return(&model.UserProject{ID: "up-1", UserID: userID1, ProjectID: projectID1, IsAdmin: false, PermissionOverrides: projectOverrides()}, nil)

	response, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, projectID1, model.PermissionsEvaluationRequest{
			model.ProbeIsAccountAdmin: {},
			model.ProbeIsProjectAdmin: {},
		})
	require.NoError(t, err)

	assert.True(t, response[model.ProbeIsAccountAdmin].OverallPermissions)
	assert.False(t, response[model.ProbeIsProjectAdmin].OverallPermissions)
}

func TestEvaluateProjectAdminProbeRequiresProjectContext(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)

	_, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			model.ProbeIsProjectAdmin: {},
		})
	requireKind(t, err, apperror.KindValidation)
}

// Superadmin and account-admin short-circuit every probe to all-true,
// including the per-type breakdown for branching targets.
func TestEvaluateElevatedShortCircuit(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1, IsAdmin: true}, nil)

	response, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			"Application_READ": {},
			"Project_CREATE":   {},
		})
	require.NoError(t, err)

	assert.True(t, response["Project_CREATE"].OverallPermissions)
	assert.Nil(t, response["Project_CREATE"].SpecificPermissions)

	application := response["Application_READ"]
	assert.True(t, application.OverallPermissions)
	assert.Equal(t, map[string]bool{"ingest": true, "preprocess": true}, application.SpecificPermissions["applicationType"])

	store.AssertNotCalled(t, "HasAllowedRolePermission", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateUnknownProbeActionUnavailable(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)

	_, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			"Project_DESTROY": {},
		})
	requireKind(t, err, apperror.KindUnavailable)
}

func TestEvaluateMissingAccountContext(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	_, err := eng.EvaluatePermissions(context.Background(), store, user,
		"", "", model.PermissionsEvaluationRequest{
			"Project_CREATE": {},
		})
	requireKind(t, err, apperror.KindValidation)
}

// Introspection parity: evaluate() answers true exactly when the validation
// call would not deny.
func TestEvaluateParityWithValidate(t *testing.T) {
	eng := newTestEngine(t)
	user := &model.User{ID: userID1}

	for _, allowed := range []bool{true, false} {
		store := &MockStore{}
		store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
			Return(&model.Account{ID: accountID1}, nil)
		store.On("GetUserAccount", mock.Anything, userID1, accountID1).
			Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)
		store.On("HasAllowedRolePermission", mock.Anything, uaID1, mock.Anything).
			Return(allowed, nil)

		_, validateErr := eng.ValidateRBACPermissions(context.Background(), store, user,
			RequestParams{"account_id": accountID1}, model.ClassProject, []string{"CREATE"})

		response, evaluateErr := eng.EvaluatePermissions(context.Background(), store, user,
			accountID1, "", model.PermissionsEvaluationRequest{"Project_CREATE": {}})
		require.NoError(t, evaluateErr)

		assert.Equal(t, validateErr == nil, response["Project_CREATE"].OverallPermissions)
		if validateErr != nil {
			requireKind(t, validateErr, apperror.KindForbidden)
		}
	}
}

// Probe-level ids participate in resolution and association checks.
func TestEvaluateProbeScopedParameters(t *testing.T) {
	eng := newTestEngine(t)
	store := &MockStore{}
	user := &model.User{ID: userID1}

	store.On("FindEntity", mock.Anything, model.ClassAccount, accountID1).
		Return(&model.Account{ID: accountID1}, nil)
	store.On("FindEntity", mock.Anything, model.ClassApplication, "7").
		Return(&model.Application{ID: 7, AccountID: accountID2, ApplicationType: "ingest"}, nil)
	store.On("GetUserAccount", mock.Anything, userID1, accountID1).
		Return(&model.UserAccount{ID: uaID1, UserID: userID1, AccountID: accountID1}, nil)

	// The probe's application belongs to another account: 422 propagates.
	_, err := eng.EvaluatePermissions(context.Background(), store, user,
		accountID1, "", model.PermissionsEvaluationRequest{
			"Configuration_CREATE": {"application_id": "7"},
		})
	requireKind(t, err, apperror.KindValidation)
}
