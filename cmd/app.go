package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rubiojr/jobsearch/pkg/api"
	"github.com/rubiojr/jobsearch/pkg/config"
	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/log"
	"github.com/rubiojr/jobsearch/pkg/reqcache"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

// app holds everything a command needs. Fields a command did not ask for
// stay nil.
type app struct {
	cfg    *config.Config
	store  *storage.Store
	client *jsearch.Client
	exec   *jobs.Executor
	redis  *redis.Client
	logger *log.Logger
}

// openApp loads the configuration and opens the local database. With
// withAPI it also builds the API client and the shared request cache.
func openApp(ctx context.Context, configPath string, withAPI bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg, logger: log.ForService("cmd")}

	a.store, err = storage.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if withAPI {
		if err := a.connectAPI(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// connectAPI builds the API client and the request cache in front of it.
func (a *app) connectAPI(ctx context.Context) error {
	cfg := a.cfg
	client, err := jsearch.NewClient(jsearch.Config{
		BaseURL:           cfg.API.BaseURL,
		Key:               cfg.API.Key,
		Host:              cfg.API.Host,
		Timeout:           cfg.API.Timeout.Duration,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("creating API client (set %s or [api] key): %w", config.EnvAPIKey, err)
	}
	a.client = client

	var opts []reqcache.Option
	if cfg.Cache.RedisURL != "" {
		a.redis, err = reqcache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			a.logger.Warnf("shared cache disabled: %v", err)
		} else {
			opts = append(opts, reqcache.WithStore(reqcache.NewRedisStore(a.redis, "")))
		}
	}
	a.exec = jobs.NewExecutor(policyFromConfig(cfg), opts...)
	return nil
}

func (a *app) Close() {
	if a.exec != nil {
		a.exec.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warnf("closing redis: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnf("closing storage: %v", err)
		}
	}
}

func (a *app) profile(ctx context.Context) *storage.Profile {
	p, err := a.store.Profile.Read(ctx)
	if err != nil {
		a.logger.Warnf("reading profile: %v", err)
		return nil
	}
	return p
}

func (a *app) likedIDs(ctx context.Context) map[string]bool {
	ids, err := a.store.Liked.IDs(ctx)
	if err != nil {
		a.logger.Warnf("reading liked jobs: %v", err)
		return map[string]bool{}
	}
	return ids
}

func policyFromConfig(cfg *config.Config) reqcache.Policy {
	return reqcache.Policy{
		DedupingInterval:   cfg.Cache.DedupingInterval.Duration,
		ErrorRetryCount:    cfg.Cache.ErrorRetryCount,
		ErrorRetryInterval: cfg.Cache.ErrorRetryInterval.Duration,
	}
}

func settingsFromConfig(cfg *config.Config) (api.Settings, error) {
	datePosted, err := jsearch.ParseDatePosted(cfg.Search.DatePosted)
	if err != nil {
		return api.Settings{}, err
	}
	return api.Settings{
		Fallback:   cfg.Search.FallbackQuery,
		Debounce:   cfg.Search.Debounce.Duration,
		Country:    cfg.Search.Country,
		DatePosted: datePosted,
		NumPages:   cfg.Search.NumPages,
	}, nil
}
