package repository

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"elevaite-rbac/internal/rbac/model"
)

const (
	collAccounts         = "accounts"
	collProjects         = "projects"
	collUsers            = "users"
	collUserAccounts     = "user_accounts"
	collUserProjects     = "user_projects"
	collRoles            = "roles"
	collRoleUserAccounts = "role_user_accounts"
	collApikeys          = "apikeys"
	collApplications     = "applications"
	collConfigurations   = "configurations"
	collInstances        = "instances"
	collDatasets         = "datasets"
	collCollections      = "collections"
)

type MongoStore struct {
	DB *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{DB: db}
}

func (s *MongoStore) FindEntity(ctx context.Context, class string, id string) (model.Entity, error) {
	coll, err := s.collectionFor(class)
	if err != nil {
		return nil, err
	}
	dst := newEntity(class)

	var key any = id
	if class == model.ClassApplication {
		n, convErr := strconv.Atoi(id)
		if convErr != nil {
			return nil, ErrNotFound
		}
		key = n
	}

	res := coll.FindOne(ctx, bson.M{"_id": key})
	if err := res.Decode(dst); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return dst, nil
}

func (s *MongoStore) ListEntities(ctx context.Context, class string, filter bson.M) ([]model.Entity, error) {
	coll, err := s.collectionFor(class)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.Entity
	for cursor.Next(ctx) {
		dst := newEntity(class)
		if err := cursor.Decode(dst); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func newEntity(class string) model.Entity {
	switch class {
	case model.ClassAccount:
		return &model.Account{}
	case model.ClassProject:
		return &model.Project{}
	case model.ClassUser:
		return &model.User{}
	case model.ClassApikey:
		return &model.Apikey{}
	case model.ClassApplication:
		return &model.Application{}
	case model.ClassConfiguration:
		return &model.Configuration{}
	case model.ClassInstance:
		return &model.Instance{}
	case model.ClassDataset:
		return &model.Dataset{}
	case model.ClassCollection:
		return &model.Collection{}
	}
	return nil
}

func (s *MongoStore) collectionFor(class string) (*mongo.Collection, error) {
	switch class {
	case model.ClassAccount:
		return s.DB.Collection(collAccounts), nil
	case model.ClassProject:
		return s.DB.Collection(collProjects), nil
	case model.ClassUser:
		return s.DB.Collection(collUsers), nil
	case model.ClassApikey:
		return s.DB.Collection(collApikeys), nil
	case model.ClassApplication:
		return s.DB.Collection(collApplications), nil
	case model.ClassConfiguration:
		return s.DB.Collection(collConfigurations), nil
	case model.ClassInstance:
		return s.DB.Collection(collInstances), nil
	case model.ClassDataset:
		return s.DB.Collection(collDatasets), nil
	case model.ClassCollection:
		return s.DB.Collection(collCollections), nil
	}
	return nil, ErrNotFound
}

func (s *MongoStore) GetUserAccount(ctx context.Context, userID, accountID string) (*model.UserAccount, error) {
	var ua model.UserAccount
	err := s.DB.Collection(collUserAccounts).FindOne(ctx, bson.M{
		"user_id":    userID,
		"account_id": accountID,
	}).Decode(&ua)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ua, nil
}

func (s *MongoStore) GetUserProject(ctx context.Context, userID, projectID string) (*model.UserProject, error) {
	var up model.UserProject
	err := s.DB.Collection(collUserProjects).FindOne(ctx, bson.M{
		"user_id":    userID,
		"project_id": projectID,
	}).Decode(&up)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

func (s *MongoStore) HasAllowedRolePermission(ctx context.Context, userAccountID string, path []string) (bool, error) {
	permissionField := "role.permissions." + strings.Join(path, ".")
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_account_id": userAccountID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collRoles,
			"localField":   "role_id",
			"foreignField": "_id",
			"as":           "role",
		}}},
		{{Key: "$unwind", Value: "$role"}},
		{{Key: "$match", Value: bson.M{permissionField: model.PermissionAllow}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$count", Value: "n"}},
	}

	cursor, err := s.DB.Collection(collRoleUserAccounts).Aggregate(ctx, pipeline)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)

	var counts []struct {
		N int `bson:"n"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return false, err
	}
	return len(counts) > 0 && counts[0].N > 0, nil
}

func (s *MongoStore) IsUserAssociatedUpToRoot(ctx context.Context, userID, startingProjectID string) (bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": startingProjectID}}},
		{{Key: "$graphLookup", Value: bson.M{
			"from":             collProjects,
			"startWith":        "$parent_project_id",
			"connectFromField": "parent_project_id",
			"connectToField":   "_id",
			"as":               "ancestors",
		}}},
		{{Key: "$project", Value: bson.M{
			"chain": bson.M{"$concatArrays": bson.A{bson.A{"$_id"}, "$ancestors._id"}},
		}}},
	}

	cursor, err := s.DB.Collection(collProjects).Aggregate(ctx, pipeline)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)

	var chains []struct {
		Chain []string `bson:"chain"`
	}
	if err := cursor.All(ctx, &chains); err != nil {
		return false, err
	}
	if len(chains) == 0 {
		return false, nil
	}
	chain := chains[0].Chain

	opts := options.Count()
	count, err := s.DB.Collection(collUserProjects).CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"project_id": bson.M{"$in": chain},
	}, opts)
	if err != nil {
		return false, err
	}
	return count == int64(len(chain)), nil
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	userAccounts := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "account_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_user_account"),
	}
	if _, err := s.DB.Collection(collUserAccounts).Indexes().CreateOne(ctx, userAccounts); err != nil {
		return err
	}

	userProjects := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "project_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_user_project"),
	}
	if _, err := s.DB.Collection(collUserProjects).Indexes().CreateOne(ctx, userProjects); err != nil {
		return err
	}

	roleAssignments := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_account_id", Value: 1}},
		Options: options.Index().SetName("role_assignments_by_membership"),
	}
	if _, err := s.DB.Collection(collRoleUserAccounts).Indexes().CreateOne(ctx, roleAssignments); err != nil {
		return err
	}

	projectParents := mongo.IndexModel{
		Keys:    bson.D{{Key: "parent_project_id", Value: 1}},
		Options: options.Index().SetName("projects_by_parent"),
	}
	_, err := s.DB.Collection(collProjects).Indexes().CreateOne(ctx, projectParents)
	return err
}
