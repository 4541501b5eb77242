package app

import (
	"context"
	"fmt"

	"github.com/yungbote/foodlens/internal/clients/chatstream"
	"github.com/yungbote/foodlens/internal/clients/gcp"
	"github.com/yungbote/foodlens/internal/clients/imageanalysis"
	"github.com/yungbote/foodlens/internal/clients/openfoodfacts"
	"github.com/yungbote/foodlens/internal/clients/productapi"
	"github.com/yungbote/foodlens/internal/config"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Clients struct {
	Chat          *chatstream.Client
	Products      *productapi.Cached
	OpenFoodFacts *openfoodfacts.Client
	ImageAnalysis *imageanalysis.Client
	// Vision is nil unless OCR is enabled.
	Vision gcp.Vision
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (Clients, error) {
	log.Info("Wiring clients...")

	chat, err := chatstream.New(log, chatstream.Options{
		BaseURL:       cfg.Backend.BaseURL,
		APIKey:        cfg.Backend.APIKey,
		StreamTimeout: cfg.Backend.StreamTimeout.Duration,
		IdleTimeout:   cfg.Backend.StreamIdleTimeout.Duration,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init chat client: %w", err)
	}

	products, err := productapi.New(log, productapi.Options{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout.Duration,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init product client: %w", err)
	}
	cached, err := productapi.NewCached(products, cfg.Pipeline.LookupCacheSize)
	if err != nil {
		return Clients{}, fmt.Errorf("init product cache: %w", err)
	}

	off, err := openfoodfacts.New(log, openfoodfacts.Options{
		BaseURL: cfg.OpenFoodFacts.BaseURL,
		Timeout: cfg.OpenFoodFacts.Timeout.Duration,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init openfoodfacts client: %w", err)
	}

	analysis, err := imageanalysis.New(log, imageanalysis.Options{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout.Duration,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init image analysis client: %w", err)
	}

	var vision gcp.Vision
	if cfg.OCR.Enabled {
		vision, err = gcp.NewVision(ctx, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init vision client: %w", err)
		}
	}

	return Clients{
		Chat:          chat,
		Products:      cached,
		OpenFoodFacts: off,
		ImageAnalysis: analysis,
		Vision:        vision,
	}, nil
}

func (c Clients) Close() {
	if c.Vision != nil {
		_ = c.Vision.Close()
	}
}
