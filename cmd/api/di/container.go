package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-doc-service/cmd/api/infrastructure"
	"user-doc-service/internal/adapter/cache"
	"user-doc-service/internal/adapter/db/mongodb"
	"user-doc-service/internal/adapter/db/sqlstore"
	ginhandler "user-doc-service/internal/adapter/gin/handler"
	grpcadapter "user-doc-service/internal/adapter/grpc"
	"user-doc-service/internal/adapter/repository/cached"
	"user-doc-service/internal/config"
	"user-doc-service/internal/usecase/user"
	"user-doc-service/pkg/metrics"
	redisclient "user-doc-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Mongo       *mongo.Client       // set for the mongo driver
	DB          *gorm.DB            // set for the postgres and sqlite drivers
	RedisClient *redisclient.Client // set when CACHE_ENABLED
	Metrics     *metrics.Manager    // set when METRICS_ENABLED
	UserUC      user.Usecase
	GinHandler  *ginhandler.UserHandler
	GRPCService *grpcadapter.UserServiceServer
}

// NewContainer creates and initializes all application dependencies.
// Resources opened before a failure are closed again.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (c *Container, err error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c = &Container{Config: cfg, Logger: l}
	defer func() {
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	repo, err := c.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	var userCache cache.UserCache
	if cfg.Redis.Enabled {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		userCache = cache.NewRedisUserCache(c.RedisClient.Client, time.Duration(cfg.Redis.CacheTTL)*time.Second, l)
		repo = cached.NewCachedUserRepository(repo, userCache, l)
	}

	if cfg.App.MetricsEnabled {
		c.Metrics = metrics.NewManager(metrics.WithRuntimeCollectors())
	}

	c.UserUC = user.New(repo, l)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.GRPCService = grpcadapter.NewUserServiceServer(c.UserUC, l)

	return c, nil
}

// newRepository opens the storage backend selected by STORAGE_DRIVER.
func (c *Container) newRepository(ctx context.Context) (user.Repository, error) {
	switch c.Config.Storage.Driver {
	case config.DriverMongo:
		client, err := infrastructure.NewMongoClient(ctx, c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		c.Mongo = client

		coll := client.Database(c.Config.Mongo.Database).Collection(c.Config.Mongo.Collection)
		repo := mongodb.NewUserRepoMongo(coll, c.Logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		return repo, nil

	case config.DriverPostgres, config.DriverSQLite:
		db, err := infrastructure.NewDatabase(c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db

		if err := sqlstore.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return sqlstore.NewUserRepoSQL(db, c.Logger), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", c.Config.Storage.Driver)
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close MongoDB client
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := infrastructure.CloseMongo(ctx, c.Mongo); err != nil {
			errs = append(errs, err)
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
