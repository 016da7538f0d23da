// Package engine assembles the cleanup engine from configuration: the
// state store, the application database, the Redis client, the handler
// registry, the run lock, telemetry, the controller and the driver.
//
// Both the HTTP server and the one-shot CLI commands build the same
// Engine, so a category behaves identically whichever way it is ticked.
//
//	eng, err := engine.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	if err := eng.SyncCategories(ctx); err != nil {
//	    return err
//	}
//	run, err := eng.Controller.Start(ctx, "messages")
package engine
