// Package config loads the gateway's static settings: server bind, the
// inference backend selection and its HTTP parameters, and logging.
// Grounded on the teacher's internal/config/config.go for the
// chu.Load+loaderenv+logi wiring; trimmed to this gateway's scope (no
// Store/Gateway-auth-tokens/Alan-cluster/ForwardAuth — those back the
// teacher's persistent multi-tenant admin surface, which this spec's
// Non-goals exclude).
package config

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"

	"github.com/rakunlabs/inference-gateway/internal/httpclient"
)

// Service is the process identity string used in log/telemetry
// initialisation, set by cmd/gateway/main.go before Load.
var Service = ""

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server    Server      `cfg:"server"`
	Inference Inference   `cfg:"inference"`
	Logging   Logging     `cfg:"logging"`
	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

type Server struct {
	Host string `cfg:"host" default:"127.0.0.1"`
	Port string `cfg:"port" default:"3000"`
}

// Inference configures the single selected backend and its HTTP client.
type Inference struct {
	BaseURL       string            `cfg:"base_url"`
	DefaultModel  string            `cfg:"default_model" default:"gpt-oss-20b"`
	AllowedModels []string          `cfg:"allowed_models"`
	TimeoutSecs   int               `cfg:"timeout_secs" default:"60"`
	HTTP          httpclient.Config `cfg:"http"`
	Provider      ProviderConfig    `cfg:"provider"`
	Proxy         string            `cfg:"proxy"`
	InsecureSkip  bool              `cfg:"insecure_skip_verify"`
}

// AllowedModelSet builds the lookup map validator.ResolveModel expects, or
// nil when no allow-list is configured.
func (i Inference) AllowedModelSet() map[string]struct{} {
	if len(i.AllowedModels) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(i.AllowedModels))
	for _, m := range i.AllowedModels {
		set[m] = struct{}{}
	}
	return set
}

// ProviderConfig is the tagged-variant provider selection from spec §6:
// openai_compat{}, openai{api_key, organization_id?}, mock{responses_dir},
// triton{model_version} (reserved, rejected at startup).
type ProviderConfig struct {
	Type string `cfg:"type"`

	// openai
	APIKey         string `cfg:"api_key" log:"-"`
	OrganizationID string `cfg:"organization_id"`

	// mock
	ResponsesDir string `cfg:"responses_dir"`

	// triton (reserved, never implemented)
	ModelVersion string `cfg:"model_version"`
}

const (
	ProviderOpenAICompat = "openai_compat"
	ProviderOpenAI       = "openai"
	ProviderMock         = "mock"
	ProviderTriton       = "triton"
)

type Logging struct {
	Level  string       `cfg:"level" default:"info"`
	Format string       `cfg:"format" default:"pretty"` // json | pretty | compact
	Output string       `cfg:"output" default:"stdout"` // stdout | file | both
	File   *FileLogging `cfg:"file"`
}

type FileLogging struct {
	Directory      string `cfg:"directory" default:"./logs"`
	Prefix         string `cfg:"prefix" default:"app"`
	MaxFileSizeMB  int    `cfg:"max_file_size_mb" default:"10"`
	MaxFiles       int    `cfg:"max_files" default:"10"`
	RotationPolicy string `cfg:"rotation_policy" default:"daily"` // daily | hourly | size
}

// Load reads config/default.yaml overlaid by config/<RUN_ENV>.yaml (chu's
// file loader resolves RUN_ENV internally the same way the teacher's
// chu.Load does), then an INFERENCE_-prefixed environment overlay.
func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("INFERENCE_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	// "both" logging output is documented upstream as not fully
	// implemented; this gateway degrades it to stdout with a warning
	// rather than guessing at a dual-writer implementation.
	if cfg.Logging.Output == "both" {
		slog.Warn("logging.output=both is not fully supported; degrading to stdout")
		cfg.Logging.Output = "stdout"
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
