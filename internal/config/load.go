package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/foodlens/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func Default() *Config {
	return &Config{
		Env: "development",
		Backend: BackendConfig{
			BaseURL:           "http://localhost:8000/api",
			Language:          "en",
			Timeout:           Duration{Duration: 30 * time.Second},
			StreamTimeout:     Duration{Duration: 0},
			StreamIdleTimeout: Duration{Duration: 45 * time.Second},
		},
		OpenFoodFacts: OpenFoodFactsConfig{
			BaseURL: "https://world.openfoodfacts.org",
			Timeout: Duration{Duration: 10 * time.Second},
		},
		Pipeline: PipelineConfig{
			StepTimeout:     Duration{Duration: 20 * time.Second},
			LookupCacheSize: 256,
		},
		Capture: CaptureConfig{FramesPerSecond: 8},
		OCR:     OCRConfig{Enabled: false},
	}
}

// Load layers, in order: defaults, the JSON file, `.env`, then process env.
func Load() (*Config, error) {
	cfg := Default()

	// A missing .env is normal.
	_ = godotenv.Load()

	cfgPath := strings.TrimSpace(os.Getenv("FOODLENS_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Backend.BaseURL = envutil.String("FOODLENS_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.APIKey = envutil.String("FOODLENS_BACKEND_API_KEY", cfg.Backend.APIKey)
	cfg.Backend.Language = envutil.String("FOODLENS_LANGUAGE", cfg.Backend.Language)
	cfg.Backend.Timeout.Duration = envutil.Duration("FOODLENS_BACKEND_TIMEOUT", cfg.Backend.Timeout.Duration)
	cfg.Backend.StreamTimeout.Duration = envutil.Duration("FOODLENS_STREAM_TIMEOUT", cfg.Backend.StreamTimeout.Duration)
	cfg.Backend.StreamIdleTimeout.Duration = envutil.Duration("FOODLENS_STREAM_IDLE_TIMEOUT", cfg.Backend.StreamIdleTimeout.Duration)
	cfg.OpenFoodFacts.BaseURL = envutil.String("FOODLENS_OFF_BASE_URL", cfg.OpenFoodFacts.BaseURL)
	cfg.Pipeline.StepTimeout.Duration = envutil.Duration("FOODLENS_STEP_TIMEOUT", cfg.Pipeline.StepTimeout.Duration)
	cfg.Pipeline.LookupCacheSize = envutil.Int("FOODLENS_LOOKUP_CACHE_SIZE", cfg.Pipeline.LookupCacheSize)
	cfg.Pipeline.UseOpenFoodFacts = envutil.Bool("FOODLENS_USE_OPENFOODFACTS", cfg.Pipeline.UseOpenFoodFacts)
	cfg.OCR.Enabled = envutil.Bool("FOODLENS_OCR_ENABLED", cfg.OCR.Enabled)
	if v := strings.TrimSpace(os.Getenv("FOODLENS_CAPTURE_FPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Capture.FramesPerSecond = f
		}
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if cfg.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	cfg.Backend.Language = strings.ToLower(strings.TrimSpace(cfg.Backend.Language))
	switch cfg.Backend.Language {
	case "":
		cfg.Backend.Language = "en"
	case "en", "hi", "hinglish":
	default:
		return fmt.Errorf("invalid backend.language=%q", cfg.Backend.Language)
	}
	if cfg.Backend.Timeout.Duration <= 0 {
		cfg.Backend.Timeout = Duration{Duration: 30 * time.Second}
	}
	if cfg.Backend.StreamTimeout.Duration < 0 {
		return errors.New("invalid backend.stream_timeout")
	}
	if cfg.Backend.StreamIdleTimeout.Duration < 0 {
		return errors.New("invalid backend.stream_idle_timeout")
	}
	cfg.OpenFoodFacts.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.OpenFoodFacts.BaseURL), "/")
	if cfg.OpenFoodFacts.Timeout.Duration <= 0 {
		cfg.OpenFoodFacts.Timeout = Duration{Duration: 10 * time.Second}
	}
	if cfg.Pipeline.StepTimeout.Duration < 0 {
		return errors.New("invalid pipeline.step_timeout")
	}
	if cfg.Pipeline.LookupCacheSize < 0 {
		cfg.Pipeline.LookupCacheSize = 0
	}
	if cfg.Capture.FramesPerSecond <= 0 {
		cfg.Capture.FramesPerSecond = 8
	}
	return nil
}
