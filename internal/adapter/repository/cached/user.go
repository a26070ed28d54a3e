package cached

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-doc-service/internal/adapter/cache"
	domain "user-doc-service/internal/domain/user"
	"user-doc-service/internal/usecase/user"
	"user-doc-service/pkg/logger"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository and a cache implementation. Only
// single-document reads are cached; writes invalidate the entry.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group

	// writes counts completed updates and deletes. A read that started
	// before a write must not populate the cache after it.
	mu     sync.Mutex
	writes uint64
}

var _ user.Repository = (*CachedUserRepository)(nil)

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// Create delegates to the DB repository.
func (r *CachedUserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.dbRepo.Create(ctx, u)
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	log := logger.WithContext(ctx, r.log)

	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			log.Warn("cache get error, falling back to database", zap.String("id", id.Hex()), zap.Error(err))
		} else if cachedUser != nil {
			return cachedUser, nil
		}
	}

	// Concurrent misses for the same id share one database read.
	result, err, _ := r.group.Do(cache.Key(id), func() (any, error) {
		if r.cache != nil {
			cachedUser, err := r.cache.Get(ctx, id)
			if err == nil && cachedUser != nil {
				return cachedUser, nil
			}
		}

		seen := r.writeCount()
		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		r.fill(ctx, u, seen)
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.User), nil
}

// List delegates to the DB repository.
func (r *CachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.List(ctx)
}

// Update updates the user in DB and invalidates the cache.
func (r *CachedUserRepository) Update(ctx context.Context, id primitive.ObjectID, patch domain.Patch) (*domain.User, error) {
	u, err := r.dbRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, id, "update")
	return u, nil
}

// Delete deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.dbRepo.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id, "delete")
	return nil
}

// AverageAge delegates to the DB repository.
func (r *CachedUserRepository) AverageAge(ctx context.Context) (*domain.AgeStats, error) {
	return r.dbRepo.AverageAge(ctx)
}

// Near delegates to the DB repository.
func (r *CachedUserRepository) Near(ctx context.Context, q domain.NearQuery) ([]domain.User, error) {
	return r.dbRepo.Near(ctx, q)
}

func (r *CachedUserRepository) writeCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// fill caches u unless a write completed since seen was taken.
func (r *CachedUserRepository) fill(ctx context.Context, u *domain.User, seen uint64) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writes != seen {
		logger.WithContext(ctx, r.log).Debug("skipping cache fill after concurrent write", zap.String("id", u.ID.Hex()))
		return
	}
	if err := r.cache.Set(ctx, u); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to cache user", zap.String("id", u.ID.Hex()), zap.Error(err))
	}
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id primitive.ObjectID, op string) {
	// Later reads must not join a flight that started before this write.
	r.group.Forget(cache.Key(id))
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cache",
			zap.String("op", op), zap.String("id", id.Hex()), zap.Error(err))
	}
}
