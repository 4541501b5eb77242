// Package app wires configuration, clients and services into one runnable
// assistant.
package app

import (
	"context"
	"fmt"

	"github.com/yungbote/foodlens/internal/barcode"
	"github.com/yungbote/foodlens/internal/capture"
	"github.com/yungbote/foodlens/internal/catalog"
	"github.com/yungbote/foodlens/internal/config"
	"github.com/yungbote/foodlens/internal/conversation"
	"github.com/yungbote/foodlens/internal/domain/chat"
	"github.com/yungbote/foodlens/internal/observability"
	"github.com/yungbote/foodlens/internal/ocr"
	"github.com/yungbote/foodlens/internal/platform/logger"
	"github.com/yungbote/foodlens/internal/resolve"
)

var Version = "dev"

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Clients  Clients
	Decoder  barcode.Decoder
	Pipeline *resolve.Pipeline
	Chat     *conversation.Controller

	otelShutdown func(context.Context) error
}

// New builds the app from cfg. A nil log is replaced by one built for
// cfg.Env.
func New(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if log == nil {
		l, err := logger.New(cfg.Env)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		log = l
	}

	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "foodlens",
		Environment: cfg.Env,
		Version:     Version,
	})

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	decoder := barcode.NewZXing(log)
	deps := resolve.Deps{
		Log:         log,
		Decoder:     decoder,
		Remote:      clients.Products,
		Catalog:     catalog.Default(),
		Analyzer:    clients.ImageAnalysis,
		StepTimeout: cfg.Pipeline.StepTimeout.Duration,
	}
	if cfg.Pipeline.UseOpenFoodFacts {
		deps.UploadRemote = clients.OpenFoodFacts
	}
	if clients.Vision != nil {
		deps.OCR = ocr.NewVisionExtractor(log, clients.Vision)
	}
	pipeline, err := resolve.New(deps)
	if err != nil {
		clients.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	controller := conversation.New(log, chat.NewConversation(), clients.Chat, conversation.Options{
		Language: cfg.Backend.Language,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Decoder:      decoder,
		Pipeline:     pipeline,
		Chat:         controller,
		otelShutdown: shutdown,
	}, nil
}

// OpenCamera starts a live scan session on dev for owner.
func (a *App) OpenCamera(ctx context.Context, reg *capture.Registry, owner string) (*capture.Session, error) {
	lease, err := reg.Acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	scanner := barcode.NewScanner(a.Log, a.Decoder, a.Cfg.Capture.FramesPerSecond)
	return capture.NewSession(a.Log, lease, scanner, a.Pipeline), nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
