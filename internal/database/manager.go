package database

import "sync"

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide manager, constructing it on first call.
// Concurrent first calls observe the same instance. Prefer passing an explicit
// *Manager to repositories; Default exists for entry points that need one
// shared handle per process.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager(nil)
	})
	return defaultManager
}
