package app

import (
	"context"
	"fmt"
	"log"

	"fitroom/internal/config"
	"fitroom/internal/genimage"
	"fitroom/internal/resolver"
	"fitroom/internal/server"
	"fitroom/internal/session"
	"fitroom/internal/wardrobe"
)

type App struct {
	server      *server.Server
	gateway     genimage.Gateway
	sweepCancel context.CancelFunc
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	store, metrics, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := initGateway(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := initCatalog(cfg)
	if err != nil {
		return nil, err
	}

	res := resolver.New(store, resolver.Config{MaxBytes: cfg.Session.MaxImageBytes})
	sessions := session.New(gw, store, res, session.Config{
		SessionTTL: cfg.Session.TTL,
		Catalog:    catalog,
	})

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	sessions.StartSweeper(sweepCtx, cfg.Session.SweepInterval)

	handler, err := server.New(server.Config{
		Sessions: sessions,
		Store:    store,
		Metrics:  metrics,
	})
	if err != nil {
		sweepCancel()
		return nil, fmt.Errorf("failed to build handler: %w", err)
	}

	return &App{
		server:      server.NewServer(cfg.Addr, handler),
		gateway:     gw,
		sweepCancel: sweepCancel,
	}, nil
}

func initGateway(ctx context.Context, cfg *config.Config) (genimage.Gateway, error) {
	if cfg.Gemini.Fake || cfg.Gemini.APIKey == "" {
		if !cfg.Gemini.Fake {
			log.Printf("image gateway: GEMINI_API_KEY not set, using fake renderer")
		} else {
			log.Printf("image gateway: fake renderer")
		}
		return genimage.NewFake(), nil
	}
	gemini, err := genimage.NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini gateway: %w", err)
	}
	log.Printf("image gateway: %s (max %d in flight)", gemini.Name(), cfg.Gemini.MaxConcurrent)
	return genimage.Wrap(gemini,
		genimage.Retry(3, 0),
		genimage.Limit(cfg.Gemini.MaxConcurrent),
		genimage.WithLogging(log.Default()),
	), nil
}

func initCatalog(cfg *config.Config) (wardrobe.Catalog, error) {
	if cfg.CatalogPath == "" {
		return nil, nil
	}
	catalog, err := wardrobe.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Printf("wardrobe catalog: %d garments from %s", len(catalog), cfg.CatalogPath)
	return catalog, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.sweepCancel()
	err := a.server.Shutdown(ctx)
	if cerr := a.gateway.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
