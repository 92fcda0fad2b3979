// Command councild runs the council orchestration core as an HTTP+SSE
// service: one streaming endpoint per pipeline stage.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"council/internal/config"
	"council/internal/council"
	"council/internal/httpapi"
	"council/internal/llm"
	"council/internal/llmconfig"
	"council/internal/observability"
)

func main() {
	observability.InitLogger("", "info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	shutdown, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without tracing")
		shutdown = nil
	}
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	httpClient := observability.NewHTTPClient(nil)

	var anthropicTransport, googleTransport llm.Transport
	if cfg.Anthropic.APIKey != "" {
		anthropicTransport = llm.NewAnthropicTransport(cfg.Anthropic)
	}
	if cfg.Google.APIKey != "" {
		if t, err := llm.NewGoogleTransport(cfg.Google, httpClient); err != nil {
			log.Warn().Err(err).Msg("google transport init failed, routing google/* through the gateway")
		} else {
			googleTransport = t
		}
	}
	openrouterTransport := llm.NewOpenRouterTransport(cfg.OpenRouter, httpClient)
	dispatch := llm.NewDispatch(openrouterTransport, anthropicTransport, googleTransport)

	breakers := llm.NewBreakerRegistry(llm.BreakerConfig{
		Failures: cfg.BreakerFailures,
		Window:   cfg.BreakerWindow,
		Cooldown: cfg.BreakerCooldown,
	}, nil)

	client := llm.NewClient(dispatch, breakers, cfg, nil)
	mux := council.NewMultiplexer(client)

	reg := buildRegistry(cfg)
	reg.Refresh(context.Background())

	resolver := llmconfig.NewResolver(llmconfig.NoopStore)
	telemetrySink := buildTelemetrySink(cfg)

	deps := httpapi.Deps{
		Client:      client,
		Multiplexer: mux,
		Registry:    reg,
		Resolver:    resolver,
		Stage1Deps: council.Stage1Deps{
			Multiplexer:        mux,
			Registry:           reg,
			Resolver:           resolver,
			Telemetry:          telemetrySink,
			MinStage1Responses: cfg.MinStage1Responses,
			MaxQueryChars:      cfg.MaxQueryChars,
			PerModelTimeout:    cfg.PerModelTimeout,
			StageDeadline:      cfg.Stage1Timeout,
			Stagger:            cfg.Stage1Stagger,
			QueueCap:           cfg.MergeQueueCap,
		},
		Stage2Deps: council.Stage2Deps{
			Multiplexer:       mux,
			Registry:          reg,
			Resolver:          resolver,
			Telemetry:         telemetrySink,
			MinStage2Rankings: cfg.MinStage2Rankings,
			PerModelTimeout:   cfg.PerModelTimeout,
			StageDeadline:     cfg.Stage2Timeout,
			Stagger:           cfg.Stage2Stagger,
			QueueCap:          cfg.MergeQueueCap,
		},
		Stage3Deps: council.Stage3Deps{
			Client:        client,
			Registry:      reg,
			Resolver:      resolver,
			Telemetry:     telemetrySink,
			StageDeadline: cfg.Stage3Timeout,
		},
	}

	srv := &http.Server{
		Addr:         ":8089",
		Handler:      httpapi.NewMux(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses run past any fixed write deadline
	}

	log.Info().Str("addr", srv.Addr).Msg("councild listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Str("addr", srv.Addr).Msg("server failed")
	}
}
