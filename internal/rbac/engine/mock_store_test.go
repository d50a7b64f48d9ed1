package engine

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"elevaite-rbac/internal/rbac/model"
)

// MockStore is a testify mock over the repository.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindEntity(ctx context.Context, class string, id string) (model.Entity, error) {
	args := m.Called(ctx, class, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.Entity), args.Error(1)
}

func (m *MockStore) ListEntities(ctx context.Context, class string, filter bson.M) ([]model.Entity, error) {
	args := m.Called(ctx, class, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Entity), args.Error(1)
}

func (m *MockStore) GetUserAccount(ctx context.Context, userID, accountID string) (*model.UserAccount, error) {
	args := m.Called(ctx, userID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockStore) GetUserProject(ctx context.Context, userID, projectID string) (*model.UserProject, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProject), args.Error(1)
}

func (m *MockStore) HasAllowedRolePermission(ctx context.Context, userAccountID string, path []string) (bool, error) {
	args := m.Called(ctx, userAccountID, path)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) IsUserAssociatedUpToRoot(ctx context.Context, userID, startingProjectID string) (bool, error) {
	args := m.Called(ctx, userID, startingProjectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
