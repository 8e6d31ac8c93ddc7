// Command gateway runs the OpenAI-compatible inference gateway: a single
// configured backend adapter behind the chat-completion HTTP surface.
// Grounded on the teacher's cmd/at/main.go for the into.Init/logi bootstrap
// idiom, adapted to start the HTTP server instead of a REPL agent loop.
package main

import (
	"context"
	"fmt"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/config"
	"github.com/rakunlabs/inference-gateway/internal/provider"
	"github.com/rakunlabs/inference-gateway/internal/provider/mock"
	"github.com/rakunlabs/inference-gateway/internal/provider/openai"
	"github.com/rakunlabs/inference-gateway/internal/provider/openaicompat"
	"github.com/rakunlabs/inference-gateway/internal/server"
)

var (
	name    = "inference-gateway"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	prov, err := newProvider(cfg.Inference)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	srv := server.New(cfg.Server, cfg.Inference, prov)

	return srv.Start(ctx)
}

// newProvider is the factory from spec §6's tagged provider variant to a
// concrete adapter. triton is accepted as a config shape (forward
// compatibility with the original's reserved variant) but rejected here,
// since no provider implements it.
func newProvider(inf config.Inference) (provider.Provider, error) {
	switch inf.Provider.Type {
	case config.ProviderOpenAICompat:
		return openaicompat.New(inf.BaseURL, inf.HTTP, inf.Proxy, inf.InsecureSkip)
	case config.ProviderOpenAI:
		return openai.New(inf.Provider.APIKey, inf.Provider.OrganizationID, inf.BaseURL, inf.HTTP, inf.Proxy, inf.InsecureSkip)
	case config.ProviderMock:
		return mock.New(inf.Provider.ResponsesDir)
	case config.ProviderTriton:
		return nil, apierr.Configuration("triton provider is reserved and not implemented")
	default:
		return nil, apierr.Configuration(fmt.Sprintf("unknown provider type: %q", inf.Provider.Type))
	}
}
