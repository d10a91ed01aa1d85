// Package health provides liveness and readiness probes.
//
// Liveness answers 200 while the process runs. Readiness runs every
// registered CheckFunc concurrently, each bounded by the check timeout, and
// answers 503 unless all of them pass.
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("mix_file", health.MixFileCheck(mgr))
//	checker.RegisterCheck("journal", health.JournalCheck(journal))
//	health.Register(mux, &cfg.Telemetry.Health, checker)
package health
