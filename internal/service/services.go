package service

import (
	"github.com/deppfellow/users-api/internal/lib/cache"
	"github.com/deppfellow/users-api/internal/lib/job"
	"github.com/deppfellow/users-api/internal/repository"
	"github.com/deppfellow/users-api/internal/server"
)

// Services is a container for all services.
type Services struct {
	Users *UserService
	Job   *job.JobService
}

// NewService constructs the services from the application container and
// the repositories. Optional dependencies (cache, jobs) are only wired
// when the server holds them.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	var userCache cache.UserCache = cache.Nop{}
	if s.Redis != nil {
		userCache = cache.NewRedisUserCache(s.Redis, s.Config.Redis.CacheTTL)
	}

	var jobs WelcomeEnqueuer
	if s.Job != nil {
		jobs = s.Job
	}

	return &Services{
		Users: NewUserService(repos.Users, userCache, jobs, s.Logger),
		Job:   s.Job,
	}, nil
}
