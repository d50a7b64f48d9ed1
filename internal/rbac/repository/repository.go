package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"elevaite-rbac/internal/rbac/model"
)

var ErrNotFound = errors.New("record not found")

// Store is the storage surface the authorization engine reads through. The
// engine treats every method as an opaque predicate or lookup; all decision
// logic stays on the engine side.
type Store interface {
	// FindEntity loads one row of the named entity class by primary key.
	// Returns ErrNotFound when the row does not exist.
	FindEntity(ctx context.Context, class string, id string) (model.Entity, error)
	// ListEntities loads rows of the named entity class matching filter.
	ListEntities(ctx context.Context, class string, filter bson.M) ([]model.Entity, error)
	// GetUserAccount returns the user/account membership row, or nil when
	// the user is not a member of the account.
	GetUserAccount(ctx context.Context, userID, accountID string) (*model.UserAccount, error)
	// GetUserProject returns the user/project association row, or nil when
	// the user is not associated to the project.
	GetUserProject(ctx context.Context, userID, projectID string) (*model.UserProject, error)
	// HasAllowedRolePermission reports whether any role assigned to the
	// user/account membership carries "Allow" at the given key path in its
	// permissions document. Disjunctive across roles.
	HasAllowedRolePermission(ctx context.Context, userAccountID string, path []string) (bool, error)
	// IsUserAssociatedUpToRoot reports whether the user has a user/project
	// association for every project on the chain from startingProjectID up
	// to its top-level ancestor, inclusive.
	IsUserAssociatedUpToRoot(ctx context.Context, userID, startingProjectID string) (bool, error)
	// EnsureIndexes creates the indexes the lookups above rely on.
	EnsureIndexes(ctx context.Context) error
}
