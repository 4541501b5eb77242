package config

import "time"

type Duration struct {
	Duration time.Duration
}

type BackendConfig struct {
	// BaseURL is the root of the assistant backend (chat stream, product lookup, image analysis).
	BaseURL string `json:"base_url"`

	// APIKey is optional; when set, clients send `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty"`

	// Language is forwarded with every chat request: en, hi or hinglish.
	Language string `json:"language,omitempty"`

	// Timeout bounds plain request/response calls.
	Timeout Duration `json:"timeout,omitempty"`

	// StreamTimeout bounds a whole chat stream; zero leaves it to caller cancellation.
	StreamTimeout Duration `json:"stream_timeout,omitempty"`

	// StreamIdleTimeout aborts a chat stream when no bytes arrive for this long.
	StreamIdleTimeout Duration `json:"stream_idle_timeout,omitempty"`
}

type OpenFoodFactsConfig struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout,omitempty"`
}

type PipelineConfig struct {
	// StepTimeout is the deadline applied to each outbound step of a resolution run.
	StepTimeout Duration `json:"step_timeout,omitempty"`

	// LookupCacheSize bounds the session-scoped product lookup cache. Zero
	// disables caching; concurrent lookups of one code still share a request.
	LookupCacheSize int `json:"lookup_cache_size,omitempty"`

	// UseOpenFoodFacts makes the upload path query Open Food Facts directly
	// instead of the backend product endpoint.
	UseOpenFoodFacts bool `json:"use_openfoodfacts,omitempty"`
}

type CaptureConfig struct {
	FramesPerSecond float64 `json:"frames_per_second,omitempty"`
}

type OCRConfig struct {
	Enabled bool `json:"enabled"`
}

type Config struct {
	Env           string              `json:"env"`
	Backend       BackendConfig       `json:"backend"`
	OpenFoodFacts OpenFoodFactsConfig `json:"openfoodfacts"`
	Pipeline      PipelineConfig      `json:"pipeline"`
	Capture       CaptureConfig       `json:"capture"`
	OCR           OCRConfig           `json:"ocr"`
}
