package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	"eyescan-server/internal/domain/detection"
	"eyescan-server/internal/domain/eventbus"
	domainimage "eyescan-server/internal/domain/image"
	"eyescan-server/internal/inference/roboflow"
	platformconfig "eyescan-server/internal/platform/config"
	platformerrors "eyescan-server/internal/platform/errors"
	platformlogging "eyescan-server/internal/platform/logging"
	platformobservability "eyescan-server/internal/platform/observability"
	httptransport "eyescan-server/internal/transport/http"
	httpdetect "eyescan-server/internal/transport/http/detect"
	_ "eyescan-server/internal/transport/http/docs"
	"eyescan-server/internal/transport/ws"
	"eyescan-server/internal/utils"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>eyescan API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

const wsDetectPath = "/ws/detect"

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader                *platformconfig.Loader
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	events                *eventbus.AsyncEventBus
	inferer               detection.Inferer
	detector              *detection.Service
}

// Run loads configuration, wires the detection service and serves HTTP until
// ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context) error {
	return run(ctx, &appState{loader: platformconfig.NewLoader()})
}

func run(ctx context.Context, state *appState) error {
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil || state.detector == nil {
		state.close()
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/detector not initialised",
		)
	}
	defer state.close()

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("start http server: %w", err)
	}

	// A server that fails to listen cancels groupCtx; stop waiting in that case.
	waitCtx, waitCancel := context.WithCancel(signalCtx)
	defer waitCancel()
	go func() {
		select {
		case <-groupCtx.Done():
			waitCancel()
		case <-waitCtx.Done():
		}
	}()

	if err := waitForShutdown(waitCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("BOOT", "server stopped")
	return nil
}

func (s *appState) close() {
	if s.events != nil {
		s.events.Stop()
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("BOOT", "observability shutdown failed: %v", err)
		}
		s.observabilityShutdown = nil
	}
	if s.logProvider != nil {
		_ = s.logProvider.Close()
		s.logProvider = nil
	}
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph:")
	for _, step := range steps {
		deps := "-"
		if len(step.DependsOn) > 0 {
			deps = strings.Join(step.DependsOn, ", ")
		}
		logger.InfoTag("BOOT", "  %s (%s) <- %s", step.ID, step.Title, deps)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "events:setup-handlers",
			Title:     "Start event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupEventsStep,
		},
		{
			ID:        "inference:init-client",
			Title:     "Initialise inference client",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindInference,
			Execute:   initInferenceStep,
		},
		{
			ID:        "detection:init-service",
			Title:     "Initialise detection service",
			DependsOn: []string{"inference:init-client", "events:setup-handlers", "observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initDetectionStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}

	result, err := loader.Load()
	if err != nil {
		return err
	}

	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Tagged()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag("BOOT", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	slogger := state.slogger
	if slogger == nil {
		slogger = state.logger.Slog()
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func setupEventsStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(2)
	bus.SetLogger(state.logger)
	if err := eventbus.SetupEventHandlers(bus, state.logger); err != nil {
		return err
	}
	bus.Start()
	state.events = bus
	return nil
}

func initInferenceStep(_ context.Context, state *appState) error {
	inf := state.config.Inference
	if inf.APIKey == "" {
		state.logger.WarnTag("INFER", "ROBOFLOW_API_KEY is not set; hosted inference will reject requests")
	}

	client, err := roboflow.New(roboflow.Config{
		APIURL:     inf.APIURL,
		APIKey:     inf.APIKey,
		Timeout:    inf.Timeout,
		MaxSide:    inf.MaxSide,
		Confidence: inf.Confidence,
		Overlap:    inf.Overlap,
		Logger:     state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "inference:init-client", "failed to create inference client", err)
	}

	state.inferer = client
	state.logger.InfoTag("INFER", "inference endpoint %s model=%s timeout=%s", inf.APIURL, inf.ModelID, inf.Timeout)
	return nil
}

func initDetectionStep(_ context.Context, state *appState) error {
	cfg := state.config

	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: &cfg.Security,
		Logger:   state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "detection:init-service", "failed to create image pipeline", err)
	}

	policy, err := detection.ParsePolicy(cfg.Detection.ClassPolicy)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "detection:init-service", "invalid class policy", err)
	}

	var events eventbus.Publisher
	if state.events != nil {
		events = state.events.Publisher()
	}

	svc, err := detection.NewService(detection.Options{
		Inferer:   state.inferer,
		Decoder:   pipeline,
		ModelID:   cfg.Inference.ModelID,
		Whitelist: detection.NewClassWhitelist(cfg.Detection.Classes...),
		Policy:    policy,
		Timeout:   cfg.Inference.Timeout,
		Events:    events,
		Logger:    state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "detection:init-service", "failed to create detection service", err)
	}

	state.detector = svc
	state.logger.InfoTag("DETECT", "class policy=%s classes=%v", svc.Policy(), cfg.Detection.Classes)
	return nil
}

// maxRequestBody allows for base64 expansion of the largest accepted image plus the data URI prefix.
func maxRequestBody(cfg *platformconfig.Config) int64 {
	return cfg.Security.MaxFileSize*2 + 1024
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}
	router := httpRouter.Engine
	root := httpRouter.Root

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "Not found")
	})

	detectService, err := httpdetect.NewService(state.detector, logger, maxRequestBody(config))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "detect:new-service", "failed to create detect service", err)
	}
	if err := detectService.Register(groupCtx, root); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "detect:register", "failed to register detect routes", err)
	}

	httptransport.NewHealthHandler(logger).Register(root)

	var hub *ws.Hub
	if config.Web.Websocket {
		hub = ws.NewHub(logger)
		wsRouter := ws.NewRouter(hub, logger, ws.RouterOptions{
			CheckOrigin: ws.AllowOrigins(config.Web.AllowedOrigins),
			BaseContext: groupCtx,
		})
		builder, err := ws.NewDetectBuilder(ws.DetectOptions{
			Detector:     state.detector,
			Logger:       logger,
			MaxFrameSize: maxRequestBody(config),
			IdleTimeout:  2 * time.Minute,
		})
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindTransport, "ws:new-handler", "failed to create websocket handler", err)
		}
		wsRouter.SetHandlerBuilder(builder)
		wsRouter.Register(root, wsDetectPath)
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "generate openapi document failed: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec")
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", addr)
		logger.InfoTag("HTTP", "detect endpoint: POST http://%s/detect", addr)
		logger.InfoTag("HTTP", "api docs: http://%s/docs", addr)

		go func() {
			<-groupCtx.Done()
			timeout := config.Server.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if hub != nil {
				hub.CloseAll(ws.ErrSessionShutdown)
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "http shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "http server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "http server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "http server failed", err)
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

// loadConfigAndLogger runs only the config and logging steps.
func loadConfigAndLogger(loader *platformconfig.Loader) (*platformconfig.Config, *utils.Logger, error) {
	state := &appState{loader: loader}

	steps := InitGraph()[:2]
	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}

	return state.config, state.logger, nil
}
