// Package bootstrap wires the server's components from configuration.
package bootstrap

import (
    "context"
    "errors"
    "fmt"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/park285/Cheese-chess-server/internal/api"
    "github.com/park285/Cheese-chess-server/internal/archive"
    "github.com/park285/Cheese-chess-server/internal/auth"
    "github.com/park285/Cheese-chess-server/internal/config"
    "github.com/park285/Cheese-chess-server/internal/lobby"
    "github.com/park285/Cheese-chess-server/internal/msgcat"
    "github.com/park285/Cheese-chess-server/internal/obslog"
    "github.com/park285/Cheese-chess-server/internal/render"
    "github.com/park285/Cheese-chess-server/internal/session"
    "github.com/park285/Cheese-chess-server/internal/store"
    "github.com/park285/Cheese-chess-server/internal/wsserver"
)

type Deps struct {
    Redis       *redis.Client // nil in memory mode
    Games       store.GameStore
    Accounts    *auth.Service
    Lobby       *lobby.Service
    Archive     *archive.Repository // nil when DATABASE_URL is unset
    Coordinator *session.Coordinator
    API         *api.Server
    WS          *wsserver.Server
}

// New builds every component. Without REDIS_URL games and accounts live in
// process memory; without DATABASE_URL finished games are not archived.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
    if cfg == nil {
        return nil, fmt.Errorf("nil config")
    }
    logger = obslog.Or(logger)
    d := &Deps{}

    if cfg.RedisURL != "" {
        rdb, err := store.Connect(ctx, cfg.RedisURL)
        if err != nil {
            return nil, fmt.Errorf("init redis: %w", err)
        }
        d.Redis = rdb
        d.Games = store.NewRedisStore(rdb, cfg.GameTTL(), logger.Named("store"))
        d.Accounts = auth.NewRedisService(rdb, cfg.SessionTTL(), auth.WithLogger(logger.Named("auth")))
    } else {
        logger.Warn("bootstrap_memory_mode", zap.String("reason", "REDIS_URL not set; state is lost on restart"))
        d.Games = store.NewMemoryStore()
        d.Accounts = auth.NewMemoryService(cfg.SessionTTL(), auth.WithLogger(logger.Named("auth")))
    }

    if cfg.DatabaseURL != "" {
        repo, err := archive.NewRepository(cfg.DatabaseURL, logger.Named("archive"))
        if err != nil {
            _ = d.Close()
            return nil, fmt.Errorf("init archive: %w", err)
        }
        d.Archive = repo
    }

    cat, err := msgcat.New(cfg.MessagesDir, session.MessageKeys...)
    if err != nil {
        _ = d.Close()
        return nil, fmt.Errorf("load messages: %w", err)
    }

    opts := session.Options{Catalog: cat, Logger: logger.Named("session"), SendTimeout: cfg.WriteTimeout()}
    if d.Archive != nil {
        opts.Archiver = d.Archive
    }
    d.Coordinator = session.New(d.Accounts, d.Games, opts)
    d.Lobby = lobby.NewService(d.Games, logger.Named("lobby"))
    d.API = api.NewServer(d.Accounts, d.Lobby, d.Games, render.NewPNGRenderer(cfg.BoardImageSize), logger.Named("api"))
    d.WS = wsserver.New(d.Coordinator, wsserver.Options{WriteTimeout: cfg.WriteTimeout(), OriginPatterns: cfg.WSOrigins, Logger: logger.Named("ws")})
    return d, nil
}

// Close releases the external connections.
func (d *Deps) Close() error {
    var errs []error
    if d.Archive != nil {
        errs = append(errs, d.Archive.Close())
    }
    if d.Redis != nil {
        errs = append(errs, d.Redis.Close())
    }
    return errors.Join(errs...)
}
