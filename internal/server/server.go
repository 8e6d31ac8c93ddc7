// Package server wires the gateway's single HTTP surface: the completion
// endpoint, model listing, health, and root probe. Grounded on the
// teacher's internal/server/server.go for the ada.New()+middleware chain
// and route-group wiring, trimmed to the single-backend, no-persistent-auth
// scope spec §4.8 describes (no provider registry, no admin API, no UI
// embed, no forward-auth/cluster/store wiring).
package server

import (
	"context"
	"net"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	"github.com/rakunlabs/inference-gateway/internal/config"
	"github.com/rakunlabs/inference-gateway/internal/provider"
)

// Server holds the single shared adapter instance every handler dispatches
// to. Per spec §5 ("Shared resources"), the adapter and its HTTP client are
// reentrant and safe for concurrent use; no other mutable state escapes a
// handler task.
type Server struct {
	cfg      config.Server
	inf      config.Inference
	provider provider.Provider

	server *ada.Server
}

func New(cfg config.Server, inf config.Inference, prov provider.Provider) *Server {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	s := &Server{
		cfg:      cfg,
		inf:      inf,
		provider: prov,
		server:   mux,
	}

	group := mux.Group("")
	group.POST("/v1/chat/completions", s.ChatCompletions)
	group.GET("/v1/models", s.ListModels)
	group.GET("/health", s.Health)
	group.GET("/", s.Root)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.cfg.Host, s.cfg.Port))
}
