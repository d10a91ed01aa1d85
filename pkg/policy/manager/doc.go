// Package manager owns the set of registered dynamic mixes and routes
// streams against it.
//
// # Core Components
//
// Registry is the bounded, ordered set of mixes. It enforces the mix and
// criteria limits, rejects duplicate registration ids and checks that only
// the owner token of a mix may update or remove it. Every mutation is
// atomic: a rejected batch leaves the registry unchanged.
//
// ActivityTracker follows each mix through the idle, mixing and disabled
// states as streams start and stop.
//
// Dispatcher delivers activity events from a background goroutine to a
// Notifier. The Manager fans events out to per-owner mailboxes, the log
// and, when configured, the journal.
//
// FileWatcher reloads an optional YAML mix file on change, debounced to
// avoid reload storms.
//
// Manager ties these together behind owner sessions.
//
// # Basic Usage
//
//	mgr := manager.NewManager(manager.DefaultConfig(), manager.Options{Logger: logger})
//	defer mgr.Close()
//
//	token := mgr.OpenSession()
//	if _, err := mgr.Register(ctx, token, mixes); err != nil {
//	    return err
//	}
//
//	handle, decision := mgr.StartStream(ctx, stream)
//	if decision.Matched {
//	    route(decision.DeviceAddress)
//	}
//	defer mgr.StopStream(ctx, handle)
//
// Closing a session unregisters every mix the token owns.
//
// # Error Handling
//
// Registry operations return a *RegistryError wrapping one of the mix
// package sentinels (ErrCapacityExceeded, ErrInvalidCriteria,
// ErrDuplicateRegistration, ErrNotFound, ErrPermissionDenied); match them
// with errors.Is. Mix file failures are reported as *ReloadError and keep
// the previously loaded mixes active.
package manager
