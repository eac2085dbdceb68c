package app

import (
	"context"
	"fmt"
	"time"

	coredatabase "todobridge/core/database"
	"todobridge/core/logger"
	tg "todobridge/core/telegram"
	"todobridge/core/telegram/router"
	"todobridge/internal/bot"
	"todobridge/internal/session"
	"todobridge/internal/todoist"
)

// App holds the assembled application.
type App struct {
	cfg   *Config
	store session.Store
	bot   *bot.Bot
}

// Bootstrap initializes the logger, opens the session store, and builds the
// bot controller.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	if err := logger.InitLogger(&cfg.Core); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Todoist.TimeoutSeconds) * time.Second
	newAPI := func(token string) bot.TaskAPI {
		return todoist.NewClient(token, todoist.Options{
			BaseURL: cfg.Todoist.BaseURL,
			Timeout: timeout,
		})
	}

	b := bot.New(bot.Options{
		Store:          store,
		NewAPI:         newAPI,
		AdminID:        cfg.Core.Telegram.AdminID,
		RequestTimeout: timeout,
	})

	return &App{cfg: cfg, store: store, bot: b}, nil
}

func openStore(cfg *Config) (session.Store, error) {
	switch cfg.Storage.Backend {
	case BackendPostgres:
		db, err := coredatabase.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app: database initialization failed: %w", err)
		}
		if err := coredatabase.RunMigrations(cfg.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: migrations failed: %w", err)
		}
		return session.NewPostgresStore(db), nil
	case BackendMemory:
		return session.NewMemoryStore(), nil
	default:
		store, err := session.OpenFileStore(cfg.Storage.File)
		if err != nil {
			return nil, fmt.Errorf("app: session file open failed: %w", err)
		}
		return store, nil
	}
}

// TelegramRunOptions builds the routing table and middleware chain.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.bot.Register(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.bot.SetFileResolver(bot.TelegramFileResolver(rt.Bot))
			return nil
		},
	}, nil
}
