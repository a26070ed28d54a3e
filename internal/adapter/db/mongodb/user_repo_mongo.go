package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"user-doc-service/internal/domain/user"
	apperrors "user-doc-service/pkg/errors"
	"user-doc-service/pkg/logger"
)

// Index names created by EnsureIndexes.
const (
	EmailIndexName       = "email_unique"
	CoordinatesIndexName = "address_coordinates_2dsphere"
)

// UserRepoMongo implements the user Repository on a MongoDB collection.
type UserRepoMongo struct {
	coll *mongo.Collection // users collection
	log  *zap.Logger
}

// NewUserRepoMongo creates a new instance of UserRepoMongo.
func NewUserRepoMongo(coll *mongo.Collection, log *zap.Logger) *UserRepoMongo {
	return &UserRepoMongo{coll: coll, log: log}
}

// EnsureIndexes creates the unique email index and the 2dsphere index on
// address.coordinates. It is idempotent.
func (r *UserRepoMongo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(EmailIndexName),
		},
		{
			Keys:    bson.D{{Key: "address.coordinates", Value: "2dsphere"}},
			Options: options.Index().SetName(CoordinatesIndexName),
		},
	}

	names, err := r.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		r.log.Error("failed to create indexes", zap.String("collection", r.coll.Name()), zap.Error(err))
		return apperrors.NewInternalError("failed to create indexes", err)
	}

	r.log.Info("indexes ensured", zap.String("collection", r.coll.Name()), zap.Strings("indexes", names))
	return nil
}

// Create inserts a new user document.
func (r *UserRepoMongo) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, apperrors.NewValidationError("", "user cannot be nil")
	}

	doc := *u
	doc.ID = user.NewID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logger.WithContext(ctx, r.log).Warn("duplicate email", zap.String("email", u.Email))
			return nil, apperrors.ErrEmailExists
		}
		logger.WithContext(ctx, r.log).Error("failed to insert user", zap.Error(err), zap.String("email", u.Email))
		return nil, apperrors.NewInternalError("failed to create user", err)
	}

	logger.WithContext(ctx, r.log).Info("user inserted", zap.String("id", doc.ID.Hex()))
	return &doc, nil
}

// GetByID retrieves a user document by its ObjectID.
func (r *UserRepoMongo) GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	var u user.User
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			logger.WithContext(ctx, r.log).Debug("user not found", zap.String("id", id.Hex()))
			return nil, apperrors.ErrUserNotFound
		}
		logger.WithContext(ctx, r.log).Error("failed to find user", zap.Error(err), zap.String("id", id.Hex()))
		return nil, apperrors.NewInternalError("failed to get user", err)
	}

	return &u, nil
}

// List returns every user document in natural order.
func (r *UserRepoMongo) List(ctx context.Context) ([]user.User, error) {
	return r.find(ctx, bson.D{}, "failed to list users")
}

// Update merges the patch with $set and returns the document after the update.
func (r *UserRepoMongo) Update(ctx context.Context, id primitive.ObjectID, patch user.Patch) (*user.User, error) {
	set := setDocument(patch)
	if len(set) == 0 {
		// $set with no fields is rejected by the server.
		return r.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u user.User
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&u)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, apperrors.ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			logger.WithContext(ctx, r.log).Warn("duplicate email on update", zap.String("id", id.Hex()))
			return nil, apperrors.ErrEmailExists
		}
		logger.WithContext(ctx, r.log).Error("failed to update user", zap.Error(err), zap.String("id", id.Hex()))
		return nil, apperrors.NewInternalError("failed to update user", err)
	}

	logger.WithContext(ctx, r.log).Info("user updated", zap.String("id", id.Hex()))
	return &u, nil
}

// Delete removes a user document by its ObjectID.
func (r *UserRepoMongo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user", zap.Error(err), zap.String("id", id.Hex()))
		return apperrors.NewInternalError("failed to delete user", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrUserNotFound
	}

	logger.WithContext(ctx, r.log).Info("user deleted", zap.String("id", id.Hex()))
	return nil
}

// ageStatsRow is the single document produced by the average age pipeline.
type ageStatsRow struct {
	Users      int64    `bson:"users"`
	AverageAge *float64 `bson:"averageAge"`
}

// AverageAge groups all documents and averages the age field.
// $avg ignores documents without an age.
func (r *UserRepoMongo) AverageAge(ctx context.Context) (*user.AgeStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "users", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "averageAge", Value: bson.D{{Key: "$avg", Value: "$age"}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to aggregate ages", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to aggregate ages", err)
	}

	var rows []ageStatsRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperrors.NewInternalError("failed to decode age stats", err)
	}

	// An empty collection produces no group at all.
	if len(rows) == 0 {
		return &user.AgeStats{}, nil
	}
	return &user.AgeStats{Users: rows[0].Users, AverageAge: rows[0].AverageAge}, nil
}

// Near runs a $near query on the 2dsphere index. Results come back nearest first.
func (r *UserRepoMongo) Near(ctx context.Context, q user.NearQuery) ([]user.User, error) {
	filter := bson.D{{Key: "address.coordinates", Value: bson.D{
		{Key: "$near", Value: bson.D{
			{Key: "$geometry", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{q.Point.Longitude(), q.Point.Latitude()}},
			}},
			{Key: "$maxDistance", Value: q.MaxDistance},
		}},
	}}}

	return r.find(ctx, filter, "failed to run proximity query")
}

func (r *UserRepoMongo) find(ctx context.Context, filter bson.D, failure string) ([]user.User, error) {
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		logger.WithContext(ctx, r.log).Error(failure, zap.Error(err))
		return nil, apperrors.NewInternalError(failure, err)
	}

	users := make([]user.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		logger.WithContext(ctx, r.log).Error(failure, zap.Error(err))
		return nil, apperrors.NewInternalError(failure, err)
	}

	return users, nil
}

// setDocument converts a patch into a $set document. Address fields use dot
// notation so sibling fields of the nested document are preserved.
func setDocument(p user.Patch) bson.D {
	set := bson.D{}
	if p.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *p.Name})
	}
	if p.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *p.Email})
	}
	if p.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *p.Age})
	}
	if p.Street != nil {
		set = append(set, bson.E{Key: "address.street", Value: *p.Street})
	}
	if p.City != nil {
		set = append(set, bson.E{Key: "address.city", Value: *p.City})
	}
	if p.Coordinates != nil {
		set = append(set, bson.E{Key: "address.coordinates", Value: *p.Coordinates})
	}
	return set
}
