package service

import (
	"context"

	"github.com/deppfellow/users-api/internal/lib/cache"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/validation"
	"github.com/rs/zerolog"
)

// WelcomeEnqueuer schedules the welcome email of a created user.
// *job.JobService implements it.
type WelcomeEnqueuer interface {
	EnqueueWelcomeEmail(ctx context.Context, user model.User) error
}

// UserService wraps the user store with the read-through cache and the
// post-create jobs. It exposes the same contract as the store, so the
// handler does not know whether a cache is in front of it.
//
// Cache and job failures are logged and never fail the request: the
// store stays the source of truth.
type UserService struct {
	repo   repository.CRUD
	cache  cache.UserCache
	jobs   WelcomeEnqueuer
	logger *zerolog.Logger
}

var _ repository.CRUD = (*UserService)(nil)

// NewUserService creates a UserService. A nil userCache disables caching
// and a nil jobs disables welcome emails.
func NewUserService(repo repository.CRUD, userCache cache.UserCache, jobs WelcomeEnqueuer, logger *zerolog.Logger) *UserService {
	if userCache == nil {
		userCache = cache.Nop{}
	}
	return &UserService{
		repo:   repo,
		cache:  userCache,
		jobs:   jobs,
		logger: logger,
	}
}

// log returns the request-scoped logger when the context carries one.
func (s *UserService) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

func (s *UserService) GetAll(ctx context.Context) ([]model.User, error) {
	return s.repo.GetAll(ctx)
}

// GetByID reads through the cache. Malformed ids skip the cache so the
// store reports them.
//
// The cache version is taken before the store read: an Update or Delete
// that lands in between bumps it and the refill is dropped.
func (s *UserService) GetByID(ctx context.Context, id string) (model.User, bool, error) {
	cacheable := validation.IsValidObjectID(id)

	var version int64
	if cacheable {
		user, found, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache lookup failed")
		} else if found {
			return user, true, nil
		}

		if version, err = s.cache.Version(ctx, id); err != nil {
			s.log(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache version lookup failed")
			cacheable = false
		}
	}

	user, found, err := s.repo.GetByID(ctx, id)
	if err != nil || !found {
		return user, found, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, user, version); err != nil {
			s.log(ctx).Warn().Err(err).Str("user_id", id).Msg("failed to cache user")
		}
	}
	return user, true, nil
}

// Create stores the user and schedules its welcome email.
func (s *UserService) Create(ctx context.Context, attrs model.User) (model.User, error) {
	user, err := s.repo.Create(ctx, attrs)
	if err != nil {
		return nil, err
	}

	if s.jobs != nil {
		if err := s.jobs.EnqueueWelcomeEmail(ctx, user); err != nil {
			s.log(ctx).Error().Err(err).Str("user_id", user.ID()).Msg("failed to enqueue welcome email")
		}
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, attrs model.User) (model.User, bool, error) {
	user, found, err := s.repo.Update(ctx, id, attrs)
	if err == nil {
		s.invalidate(ctx, id)
	}
	return user, found, err
}

func (s *UserService) Delete(ctx context.Context, id string) (model.Filter, bool, error) {
	filter, found, err := s.repo.Delete(ctx, id)
	if err == nil {
		s.invalidate(ctx, id)
	}
	return filter, found, err
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log(ctx).Warn().Err(err).Str("user_id", id).Msg("failed to invalidate cached user")
	}
}
