package routerservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-dispatch-router/internal/api"
	"github.com/tinywideclouds/go-dispatch-router/internal/pipeline"
	"github.com/tinywideclouds/go-dispatch-router/internal/router"
	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
	"github.com/tinywideclouds/go-dispatch-router/routerservice/config"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[routing.InboundMessage]
	dispatchRouter  *router.Router
	publisher       routing.IntentConsumer
	intentSub       routing.Subscription
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	dispatchRouter *router.Router,
	intentPublisher routing.IntentConsumer,
	deviceStore routing.DeviceStore,
	provider api.DeviceProvider,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(dispatchRouter, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.InboundMessageTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API (Device Registration + Event Reporting)
	deviceAPI := api.NewDeviceAPI(deviceStore, provider, cfg.Router.DefaultTopics, logger)
	eventsAPI := api.NewEventsAPI(dispatchRouter, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	// Helper for clean route definition
	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// 1. Device Registration Paths
	handle("POST /api/v1/devices/register", deviceAPI.RegisterDevice)
	handle("POST /api/v1/devices/unregister", deviceAPI.UnregisterDevice)

	// 2. Interaction Reporting Paths (the direct HTTP door into the router)
	handle("POST /api/v1/events/tap", eventsAPI.ReportTap)
	handle("POST /api/v1/events/launch", eventsAPI.ReportLaunch)

	// 3. Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Just returns 200 OK with CORS headers handled by middleware
	})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		dispatchRouter:  dispatchRouter,
		publisher:       intentPublisher,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	// The intent publisher must be attached before the first message can
	// arrive, otherwise an early delivery is marked seen and dropped.
	w.intentSub = w.dispatchRouter.Attach(w.publisher)

	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if w.intentSub != nil {
		w.intentSub.Unsubscribe()
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
