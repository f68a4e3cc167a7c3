// Package status holds the application's coarse session phase.
//
// # Overview
//
// The status is one of loggedout, loggedin or activated. A Store keeps the
// current value in memory, mirrors it to a Properties backend under
// "<appID>.status" and broadcasts a "status" event carrying a Change on
// every SetStatus.
//
// # Lifecycle
//
// Create one Store at application start with NewStore and hand it to every
// consumer. The persisted value is read at most once, by the first GetStatus
// that finds no in-memory value; after that memory is the single source of
// truth and the backend is only written to.
//
// # Ordering
//
// SetStatus persists first, then updates memory, then broadcasts. Listeners
// run synchronously before SetStatus returns and may read the backend or call
// GetStatus; both already reflect the new value.
package status
