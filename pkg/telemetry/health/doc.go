// Package health serves liveness, readiness and version endpoints.
//
// Liveness only proves the process is up. Readiness runs every registered
// check concurrently, each under its own timeout, and answers 503 when any
// of them fails:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("storage", health.PingCheck(store))
//	checker.RegisterCheck("targets", health.PingCheck(targetDB))
//	checker.Mount(mux, &cfg.Telemetry.Health, health.VersionInfo{Version: version})
package health
