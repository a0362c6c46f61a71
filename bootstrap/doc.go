// Package bootstrap runs a service through its lifecycle: typed config,
// component startup in registration order, readiness, signal wait and
// graceful shutdown.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(hub)
//	app.RegisterComponent(srv)
//	app.OnStop(func(ctx context.Context) error { hub.Stop(); return nil })
//	err = app.Run(ctx)
package bootstrap
