package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	domain "user-doc-service/internal/domain/user"
	apperrors "user-doc-service/pkg/errors"
	"user-doc-service/pkg/logger"
)

// Repository defines the interface for user data access operations.
// Implementations translate driver failures into pkg/errors types: a missing
// document is a NotFoundError and a duplicate email is an AlreadyExistsError.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)                            // Insert a new user, assigning its ID
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)                    // Retrieve user by ID
	List(ctx context.Context) ([]domain.User, error)                                             // All users in storage order
	Update(ctx context.Context, id primitive.ObjectID, patch domain.Patch) (*domain.User, error) // Merge patch and return the updated user
	Delete(ctx context.Context, id primitive.ObjectID) error                                     // Remove user by ID
	AverageAge(ctx context.Context) (*domain.AgeStats, error)                                    // Mean age over users that have one
	Near(ctx context.Context, q domain.NearQuery) ([]domain.User, error)                         // Users within a radius, nearest first
}

// Interactor implements the business logic for user management operations.
// Each operation issues exactly one repository call.
type Interactor struct {
	repo     Repository
	log      *zap.Logger
	validate *validator.Validate
}

var _ Usecase = (*Interactor)(nil)

// New creates a new Interactor with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Interactor {
	return &Interactor{repo: r, log: log, validate: validator.New()}
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewValidationError("", err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must not be empty", e.Field()))
		case "len":
			messages = append(messages, fmt.Sprintf("%s must have exactly %s elements", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return apperrors.NewValidationError("", strings.Join(messages, ", "))
}

// CreateUser validates the request and persists a new user.
// Email uniqueness is enforced by the repository.
func (uc *Interactor) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{
		Name:  in.Name,
		Email: in.Email,
		Age:   in.Age,
	}
	if in.Address != nil {
		addr, err := toDomainAddress(in.Address)
		if err != nil {
			log.Warn("invalid address", zap.Error(err))
			return nil, err
		}
		u.Address = addr
	}

	created, err := uc.repo.Create(ctx, u)
	if err != nil {
		log.Warn("failed to create user", zap.String("email", in.Email), zap.Error(err))
		return nil, err
	}

	log.Info("user created", zap.String("id", created.ID.Hex()))
	dto := toDTO(*created)
	return &dto, nil
}

// ListUsers returns every user in storage order.
func (uc *Interactor) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to list users", zap.Error(err))
		return nil, err
	}

	return &ListUsersResponse{Users: toDTOs(domainUsers)}, nil
}

// GetUser retrieves a user by ID.
func (uc *Interactor) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	id, err := domain.ParseID(in.ID)
	if err != nil {
		logger.WithContext(ctx, uc.log).Warn("get user validation failed", zap.String("id", in.ID), zap.Error(err))
		return nil, err
	}

	u, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := toDTO(*u)
	return &dto, nil
}

// UpdateUser merges the supplied fields into an existing user.
func (uc *Interactor) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.String("id", in.ID))

	id, err := domain.ParseID(in.ID)
	if err != nil {
		log.Warn("update user validation failed", zap.String("id", in.ID), zap.Error(err))
		return nil, err
	}

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	patch := domain.Patch{
		Name:  in.Name,
		Email: in.Email,
		Age:   in.Age,
	}
	if in.Address != nil {
		patch.Street = in.Address.Street
		patch.City = in.Address.City
		if len(in.Address.Coordinates) == 2 {
			c := domain.NewCoordinates(in.Address.Coordinates[0], in.Address.Coordinates[1])
			if err := c.Validate(); err != nil {
				return nil, apperrors.NewValidationError("address.coordinates", err.Error())
			}
			patch.Coordinates = &c
		}
	}

	u, err := uc.repo.Update(ctx, id, patch)
	if err != nil {
		log.Warn("failed to update user", zap.String("id", in.ID), zap.Error(err))
		return nil, err
	}

	dto := toDTO(*u)
	return &dto, nil
}

// DeleteUser permanently removes a user.
func (uc *Interactor) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.String("id", in.ID))

	id, err := domain.ParseID(in.ID)
	if err != nil {
		log.Warn("delete user validation failed", zap.String("id", in.ID), zap.Error(err))
		return nil, err
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		log.Warn("failed to delete user", zap.String("id", in.ID), zap.Error(err))
		return nil, err
	}

	return &DeleteUserResponse{ID: id.Hex()}, nil
}

// AverageAge computes the mean age over all users that have an age.
func (uc *Interactor) AverageAge(ctx context.Context) (*AgeStatsResponse, error) {
	stats, err := uc.repo.AverageAge(ctx)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to aggregate ages", zap.Error(err))
		return nil, err
	}

	return &AgeStatsResponse{Users: stats.Users, AverageAge: stats.AverageAge}, nil
}

// FindNearby returns users whose address lies within MaxDistance meters of the point.
func (uc *Interactor) FindNearby(ctx context.Context, in FindNearbyRequest) (*ListUsersResponse, error) {
	q := domain.NearQuery{
		Point:       domain.NewCoordinates(in.Longitude, in.Latitude),
		MaxDistance: in.MaxDistance,
	}
	if err := q.Validate(); err != nil {
		logger.WithContext(ctx, uc.log).Warn("invalid proximity query", zap.Error(err))
		return nil, apperrors.NewValidationError("", err.Error())
	}

	domainUsers, err := uc.repo.Near(ctx, q)
	if err != nil {
		logger.WithContext(ctx, uc.log).Error("failed to run proximity query", zap.Error(err))
		return nil, err
	}

	return &ListUsersResponse{Users: toDTOs(domainUsers)}, nil
}

func toDomainAddress(a *Address) (*domain.Address, error) {
	addr := &domain.Address{Street: a.Street, City: a.City}
	if len(a.Coordinates) == 2 {
		c := domain.NewCoordinates(a.Coordinates[0], a.Coordinates[1])
		if err := c.Validate(); err != nil {
			return nil, apperrors.NewValidationError("address.coordinates", err.Error())
		}
		addr.Coordinates = &c
	}
	return addr, nil
}

func toDTO(u domain.User) User {
	dto := User{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Age:   u.Age,
	}
	if u.Address != nil {
		dto.Address = &Address{Street: u.Address.Street, City: u.Address.City}
		if u.Address.Coordinates != nil {
			dto.Address.Coordinates = []float64{u.Address.Coordinates.Longitude(), u.Address.Coordinates.Latitude()}
		}
	}
	return dto
}

func toDTOs(users []domain.User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = toDTO(u)
	}
	return out
}
