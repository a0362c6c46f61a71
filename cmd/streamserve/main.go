package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/kbukum/streamkit/bootstrap"
	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/redis"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/storage"
	"github.com/kbukum/streamkit/version"
)

const serviceName = "streamserve"

var (
	configFlag  string
	versionFlag bool
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to config.yml (searched in the standard locations when empty)")
	flag.BoolVar(&versionFlag, "version", false, "Print the build version and exit")
}

func main() {
	flag.Parse()
	if versionFlag {
		fmt.Println(serviceName, version.Short())
		return
	}

	var cfg AppConfig
	var opts []config.LoaderOption
	if configFlag != "" {
		opts = append(opts, config.WithConfigFile(configFlag))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	app, _, err := newApp(&cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Fatal("Application failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

// newApp wires telemetry, the SSE hub, the delivery controller and the HTTP
// server into a bootstrap.App. A nil log initializes the global logger from cfg.
func newApp(cfg *AppConfig, log *logger.Logger) (*bootstrap.App[*AppConfig], *server.Server, error) {
	var appOpts []bootstrap.Option
	if log != nil {
		appOpts = append(appOpts, bootstrap.WithLogger(log))
	}
	app, err := bootstrap.NewApp(cfg, appOpts...)
	if err != nil {
		return nil, nil, err
	}
	log = app.Logger

	tel, err := observability.NewTelemetry(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}

	hubOpts := []sse.HubOption{sse.WithLogger(log)}
	if prom := tel.Prometheus(); prom != nil {
		hubOpts = append(hubOpts, sse.WithMetrics(prom))
	}
	events := sse.NewComponent(eventsPath, hubOpts...)

	ctrlOpts := []delivery.Option{
		delivery.WithObserver(tel.Observer()),
		delivery.WithLogger(log),
	}
	if cfg.Demo.SubstituteErrors {
		ctrlOpts = append(ctrlOpts, delivery.WithErrorHandler(substituteError))
	}
	controller := delivery.New(cfg.Delivery, ctrlOpts...)

	components := []component.Component{tel, events}

	// With Redis enabled, publishes go through the relay so that every
	// instance's hub sees them.
	var publisher sse.Broadcaster = events.Hub()
	if cfg.Redis.Enabled {
		rc := redis.NewComponent(cfg.Redis, log)
		relay := redis.NewRelay(rc, events.Hub(), cfg.Redis.Channel, log)
		components = append(components, rc, relay)
		publisher = relay
	}

	srv := server.New(cfg.Server, controller, log)
	srv.ApplyMiddleware()
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll, tel.MetricsHandler())
	registerRoutes(srv, events.Hub(), publisher, cfg)
	if cfg.Storage.Enabled {
		store := storage.NewComponent(cfg.Storage, log)
		registerObjectRoutes(srv, store, cfg.Delivery.ChunkBytes())
		components = append(components, store)
	}
	components = append(components, server.NewComponent(srv))

	for _, c := range components {
		if err := app.RegisterComponent(c); err != nil {
			return nil, nil, err
		}
	}

	// Open SSE streams never finish on their own; close them before the
	// server waits for in-flight requests.
	app.OnStop(func(context.Context) error {
		events.Hub().Stop()
		return nil
	})
	return app, srv, nil
}

// substituteError answers a failure before the first byte with a short
// plain-text body.
func substituteError(_ context.Context, failure error) (*delivery.Response, error) {
	return delivery.Text(http.StatusServiceUnavailable, "stream unavailable, try again\n").
		WithHeader("Retry-After", "1"), nil
}
