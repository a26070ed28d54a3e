package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-doc-service/internal/domain/user"
	apperrors "user-doc-service/pkg/errors"
	"user-doc-service/pkg/logger"
)

// UserRepoSQL implements the user Repository on a relational database
// through GORM. It backs the postgres and sqlite storage drivers.
type UserRepoSQL struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoSQL creates a new instance of UserRepoSQL.
func NewUserRepoSQL(db *gorm.DB, log *zap.Logger) *UserRepoSQL {
	return &UserRepoSQL{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
// The nested address is flattened into nullable columns; Street is
// non-null whenever the user has an address.
type UserSchema struct {
	ID        string   `gorm:"primaryKey;size:24"`       // ObjectID hex
	Name      string   `gorm:"not null"`                 // User's full name (required)
	Email     string   `gorm:"not null;uniqueIndex"`     // User's unique email address (required, unique)
	Age       *int     `gorm:"index"`                    // Optional age
	Street    *string  `gorm:"column:address_street"`    // Address street
	City      *string  `gorm:"column:address_city"`      // Address city
	Longitude *float64 `gorm:"column:address_longitude"` // Address coordinates, longitude
	Latitude  *float64 `gorm:"column:address_latitude"`  // Address coordinates, latitude
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// Migrate creates or updates the users table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserSchema{})
}

// Create inserts a new user row.
func (r *UserRepoSQL) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, apperrors.NewValidationError("", "user cannot be nil")
	}

	created := *u
	created.ID = user.NewID()
	model := toSchema(&created)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			logger.WithContext(ctx, r.log).Warn("duplicate email", zap.String("email", u.Email))
			return nil, apperrors.ErrEmailExists
		}
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err), zap.String("email", u.Email))
		return nil, apperrors.NewInternalError("failed to create user", err)
	}

	logger.WithContext(ctx, r.log).Info("user created in db", zap.String("id", model.ID))
	return &created, nil
}

// GetByID retrieves a user by its identifier.
func (r *UserRepoSQL) GetByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	model, err := r.first(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, r.lookupError(ctx, err, id, "failed to get user")
	}
	u, err := toDomain(model)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("corrupt user row", zap.String("id", model.ID), zap.Error(err))
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return u, nil
}

// List returns every user ordered by identifier, which follows creation order.
func (r *UserRepoSQL) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to list users", err)
	}
	users, err := toDomainList(models)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("corrupt user row", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// Update applies the patch inside a transaction and returns the stored row.
func (r *UserRepoSQL) Update(ctx context.Context, id primitive.ObjectID, patch user.Patch) (*user.User, error) {
	var updated *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.first(tx, id)
		if err != nil {
			return err
		}
		u, err := toDomain(model)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = u
			return nil
		}

		patch.Apply(u)
		next := toSchema(u)
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			logger.WithContext(ctx, r.log).Warn("duplicate email on update", zap.String("id", id.Hex()))
			return nil, apperrors.ErrEmailExists
		}
		return nil, r.lookupError(ctx, err, id, "failed to update user")
	}

	logger.WithContext(ctx, r.log).Info("user updated in db", zap.String("id", id.Hex()))
	return updated, nil
}

// Delete removes a user row by its identifier.
func (r *UserRepoSQL) Delete(ctx context.Context, id primitive.ObjectID) error {
	res := r.db.WithContext(ctx).Delete(&UserSchema{}, "id = ?", id.Hex())
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(res.Error), zap.String("id", id.Hex()))
		return apperrors.NewInternalError("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}

	logger.WithContext(ctx, r.log).Info("user deleted in db", zap.String("id", id.Hex()))
	return nil
}

type ageStatsRow struct {
	Users      int64
	AverageAge *float64
}

// AverageAge counts all rows and averages the non-null ages.
func (r *UserRepoSQL) AverageAge(ctx context.Context) (*user.AgeStats, error) {
	var row ageStatsRow
	err := r.db.WithContext(ctx).
		Model(&UserSchema{}).
		Select("COUNT(*) AS users, AVG(age) AS average_age").
		Scan(&row).Error
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to aggregate ages", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to aggregate ages", err)
	}
	return &user.AgeStats{Users: row.Users, AverageAge: row.AverageAge}, nil
}

// Near loads users that have coordinates and keeps those within the
// query radius, nearest first.
func (r *UserRepoSQL) Near(ctx context.Context, q user.NearQuery) ([]user.User, error) {
	var models []UserSchema
	err := r.db.WithContext(ctx).
		Where("address_longitude IS NOT NULL AND address_latitude IS NOT NULL").
		Order("id").
		Find(&models).Error
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to run proximity query", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to run proximity query", err)
	}

	type hit struct {
		u    user.User
		dist float64
	}
	candidates, err := toDomainList(models)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("corrupt user row", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to run proximity query", err)
	}
	hits := make([]hit, 0, len(candidates))
	for _, u := range candidates {
		d := q.Point.DistanceTo(*u.Address.Coordinates)
		if d <= q.MaxDistance {
			hits = append(hits, hit{u: u, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	users := make([]user.User, len(hits))
	for i, h := range hits {
		users[i] = h.u
	}
	return users, nil
}

func (r *UserRepoSQL) first(db *gorm.DB, id primitive.ObjectID) (UserSchema, error) {
	var model UserSchema
	err := db.Where("id = ?", id.Hex()).First(&model).Error
	return model, err
}

func (r *UserRepoSQL) lookupError(ctx context.Context, err error, id primitive.ObjectID, failure string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithContext(ctx, r.log).Debug("user not found", zap.String("id", id.Hex()))
		return apperrors.ErrUserNotFound
	}
	logger.WithContext(ctx, r.log).Error(failure, zap.Error(err), zap.String("id", id.Hex()))
	return apperrors.NewInternalError(failure, err)
}

// isDuplicate reports a unique constraint violation. Dialects that do not
// translate errors are matched on the driver message.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func toSchema(u *user.User) UserSchema {
	model := UserSchema{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Age:   u.Age,
	}
	if a := u.Address; a != nil {
		street, city := a.Street, a.City
		model.Street = &street
		model.City = &city
		if c := a.Coordinates; c != nil {
			lng, lat := c.Longitude(), c.Latitude()
			model.Longitude = &lng
			model.Latitude = &lat
		}
	}
	return model
}

func toDomain(m UserSchema) (*user.User, error) {
	id, err := primitive.ObjectIDFromHex(m.ID)
	if err != nil {
		return nil, fmt.Errorf("row id %q: %w", m.ID, err)
	}
	u := &user.User{
		ID:    id,
		Name:  m.Name,
		Email: m.Email,
		Age:   m.Age,
	}
	if m.Street != nil || m.City != nil || m.Longitude != nil {
		a := &user.Address{}
		if m.Street != nil {
			a.Street = *m.Street
		}
		if m.City != nil {
			a.City = *m.City
		}
		if m.Longitude != nil && m.Latitude != nil {
			c := user.NewCoordinates(*m.Longitude, *m.Latitude)
			a.Coordinates = &c
		}
		u.Address = a
	}
	return u, nil
}

func toDomainList(models []UserSchema) ([]user.User, error) {
	users := make([]user.User, len(models))
	for i, m := range models {
		u, err := toDomain(m)
		if err != nil {
			return nil, err
		}
		users[i] = *u
	}
	return users, nil
}
