package model

// Entity class names. These are the exact strings permission schemas use in
// ENTITY_ keys and the strings request parameters resolve to ("project_id"
// -> "Project", "apikey_id" -> "Apikey").
const (
	ClassAccount       = "Account"
	ClassProject       = "Project"
	ClassUser          = "User"
	ClassApplication   = "Application"
	ClassConfiguration = "Configuration"
	ClassInstance      = "Instance"
	ClassDataset       = "Dataset"
	ClassCollection    = "Collection"
	ClassApikey        = "Apikey"
)

// Context headers. Account and project context for an endpoint arrives in
// these headers when it is not part of the path.
const (
	HeaderAccountID = "X-elevAIte-AccountId"
	HeaderProjectID = "X-elevAIte-ProjectId"
)

// Identity headers resolved by the upstream authenticator.
const (
	HeaderUserID   = "x-user-id"
	HeaderApikeyID = "x-apikey-id"
)

// Permission leaf values.
const (
	PermissionAllow = "Allow"
	PermissionDeny  = "Deny"
)

// Reserved permission-evaluation probe names.
const (
	ProbeIsProjectAdmin = "IS_PROJECT_ADMIN"
	ProbeIsAccountAdmin = "IS_ACCOUNT_ADMIN"
)

// Action verbs used by the evaluator itself. READ is the action checked along
// the precedence chain before the target action.
const ActionRead = "READ"
