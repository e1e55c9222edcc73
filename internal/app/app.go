package app

import (
	"context"
	"log/slog"
	"net/http"

	channelapp "github.com/FurmanovVitaliy/extension-auth/internal/app/channel"
	grpcapp "github.com/FurmanovVitaliy/extension-auth/internal/app/grpc"
	"github.com/FurmanovVitaliy/extension-auth/internal/background"
	"github.com/FurmanovVitaliy/extension-auth/internal/channel"
	"github.com/FurmanovVitaliy/extension-auth/internal/config"
	"github.com/FurmanovVitaliy/extension-auth/internal/metrics"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/auth"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/remote"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage/memory"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage/postgre"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage/redis"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage/sqlite"
	pgClient "github.com/FurmanovVitaliy/extension-auth/pkg/clients/postgre"
	redisClient "github.com/FurmanovVitaliy/extension-auth/pkg/clients/redis"
	"github.com/FurmanovVitaliy/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the background process: identity provider, credential store and the
// channel server that exposes them to popups.
type App struct {
	log           *slog.Logger
	ChannelServer *channelapp.App
	// GRPCServer is nil unless the local provider is exposed on the SSO API.
	GRPCServer *grpcapp.App
	Service    *background.Service

	dbConnection    pgClient.PostgresClient
	cacheConnection redisClient.RedisClient
	closers         []func() error
}

// New builds the background process. Connection failures panic, like the
// rest of the Must* start-up path.
func New(
	log *slog.Logger,
	cfg *config.Config,
	reg prometheus.Registerer,
) *App {
	ctx := context.Background()
	a := &App{log: log}

	store := a.mustStore(ctx, cfg)
	provider := a.mustProvider(ctx, cfg)

	m := metrics.New(cfg.Metrics.Enabled, reg)
	a.Service = background.New(log, provider, store, background.WithMetrics(m))

	server := channel.NewServer(log, a.Service, cfg.Channel.Timeout, cfg.Channel.Origins)
	server.SetConnHooks(m.PopupConnected, m.PopupDisconnected)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = m.Handler()
	}
	a.ChannelServer = channelapp.New(log, cfg.Channel.Addr, cfg.Channel.Path, server, cfg.Metrics.Path, metricsHandler)

	return a
}

func (a *App) postgres(ctx context.Context, cfg config.PostgresConfig) pgClient.PostgresClient {
	if a.dbConnection != nil {
		return a.dbConnection
	}
	pool, version, err := pgClient.NewPostgresClient(ctx, cfg.ConnRetry, cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
	if err != nil {
		panic(err)
	}
	a.log.Info("postgreSQL connected", slog.String("version", version))
	a.dbConnection = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return pool
}

func (a *App) redis(ctx context.Context, cfg config.RedisConfig) redisClient.RedisClient {
	if a.cacheConnection != nil {
		return a.cacheConnection
	}
	client, version, err := redisClient.NewRedisClient(ctx, cfg.ConnRetry, cfg.Host, cfg.Port, cfg.Password, cfg.Database)
	if err != nil {
		panic(err)
	}
	a.log.Info("redis connected", slog.String("version", version))
	a.cacheConnection = client
	a.closers = append(a.closers, client.Close)
	return client
}

func (a *App) mustStore(ctx context.Context, cfg *config.Config) background.CredentialStore {
	ns := cfg.Store.Namespace

	switch cfg.Store.Kind {
	case config.StoreRedis:
		return redis.NewStorage(a.log, a.redis(ctx, cfg.Store.Redis), ns)
	case config.StorePostgres:
		return postgre.NewStorage(a.log, a.postgres(ctx, cfg.Store.Postgres), ns)
	case config.StoreSQLite:
		s, err := sqlite.New(ctx, a.log, cfg.Store.SQLite.Path, ns)
		if err != nil {
			panic(err)
		}
		a.closers = append(a.closers, s.Close)
		return s
	default:
		return memory.NewStorage()
	}
}

func (a *App) mustProvider(ctx context.Context, cfg *config.Config) background.AuthClient {
	if cfg.Provider.Kind == config.ProviderSSO {
		sso := cfg.Provider.SSO
		client, err := remote.Dial(a.log, sso.Addr, sso.AppID, sso.Timeout)
		if err != nil {
			panic(err)
		}
		a.closers = append(a.closers, client.Close)
		a.log.Info("using SSO identity provider", slog.String("addr", sso.Addr))
		return client
	}

	local := cfg.Provider.Local
	accounts := memory.NewAccounts()

	var users auth.UserProvider = accounts
	if local.Accounts == config.StorePostgres {
		users = postgre.NewStorage(a.log, a.postgres(ctx, cfg.Store.Postgres), cfg.Store.Namespace)
	}

	var sessions auth.SessionProvider = accounts
	if local.Sessions == config.StoreRedis {
		sessions = redis.NewStorage(a.log, a.redis(ctx, cfg.Store.Redis), cfg.Store.Namespace)
	}

	a.log.Info("using local identity provider",
		slog.String("accounts", local.Accounts),
		slog.String("sessions", local.Sessions),
	)
	service := auth.New(a.log, users, sessions, local.AppID, local.Secret, local.AccessTokenTTL, local.RefreshTokenTTL)
	if local.GRPC.Port != 0 {
		a.GRPCServer = grpcapp.New(a.log, local.GRPC.Port, local.GRPC.Timeout, local.GRPC.Cert, local.GRPC.Key, service)
	}
	return service
}

// Close releases backend connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to close connection", logger.ErrAttr(err))
		}
	}
}
