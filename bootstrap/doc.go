// Package bootstrap provides application initialization and lifecycle management.
// It extracts the wiring logic from main.go into testable, composable components.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, bootstrap.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown(ctx)
//
//	engine, err := app.NewEngine()
package bootstrap
