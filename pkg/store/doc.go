// Package store journals mix registry activity.
//
// A Journal keeps three append-only streams:
//
//   - registrations: every register, update, unregister and owner
//     invalidation, with the parcel encoding of the mix involved
//   - activity: idle/mixing/disabled transitions of registered mixes
//   - decisions: routing decisions taken when streams start and stop
//
// Two implementations are provided. SQLiteJournal persists to a SQLite
// database through either the pure Go driver ("sqlite", modernc.org/sqlite)
// or the cgo driver ("sqlite3", github.com/mattn/go-sqlite3). MemoryJournal
// keeps everything in process and is used by tests and by deployments that
// disable persistence.
//
// Records are pruned by age and count with Prune, normally driven by the
// retention package.
package store
