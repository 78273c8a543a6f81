// Package main provides the Flowpilot API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/flowpilot/pkg/editor"
	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/registry"
	"github.com/dukex/flowpilot/pkg/services"
	"github.com/dukex/flowpilot/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger            *slog.Logger
	persistence       persistence.Persistence
	registry          *registry.Registry
	validate          *validator.Validate
	connections       *graph.ConnectionValidator
	workflowService   *services.Workflow
	publishingService *services.Publishing
	hub               *editor.Hub
	app               *fiber.App
}

// NewAPI wires the services and the editor hub. eventBus may be nil.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	editorOpts ...editor.HubOption,
) *API {
	factory := graph.NewFactory(registry)
	connections := graph.NewConnectionValidator(registry)

	serviceOpts := []services.Option{
		services.WithLogger(logger.With("component", "services")),
		services.WithTracer(tracer),
	}
	if eventBus != nil {
		serviceOpts = append(serviceOpts, services.WithEventPublisher(eventBus))
	}

	workflowService := services.NewWorkflow(persistence, factory, serviceOpts...)

	hubOpts := append([]editor.HubOption{
		editor.WithLogger(logger.With("component", "editor")),
		editor.WithTracer(tracer),
	}, editorOpts...)

	return &API{
		logger:            logger,
		persistence:       persistence,
		registry:          registry,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		connections:       connections,
		workflowService:   workflowService,
		publishingService: services.NewPublishing(persistence, serviceOpts...),
		hub:               editor.NewHub(workflowService, factory, connections, hubOpts...),
	}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := web.NewAPIHandlers(a.workflowService, a.publishingService, a.hub, a.connections, a.validate, a.registry)

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowpilot API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

// Close saves what the open editor sessions still hold.
func (a *API) Close(ctx context.Context) error {
	if err := a.hub.Close(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to flush editor sessions", "error", err)

		return err
	}

	return nil
}
