// Package config holds the process-wide configuration for the
// scheduler, following the single-struct-of-overridable-fields
// pattern used throughout the teacher codebase's own engine
// configuration: a Config value, a DefaultConfig constructor
// documenting every default, and a package-level Configure entry
// point that swaps the active configuration.
package config

// Config records frame-scheduling-wide settings that do not
// belong to any single pass. No other package in this module
// reads the active Config: the queue count comes from
// gpu.Backend.QueueCount, the upload ring's FIFO is not bounded by
// FramesInFlight, and resstore.Store aliases every resource whose
// format allows it regardless of EnableAliasing.
type Config struct {
	// QueueCount is the number of independently schedulable
	// queues. ResourceScheduler.ExecuteOnQueue does not check a
	// queue index against it.
	QueueCount int

	// FramesInFlight is the number of frames that may be in
	// flight at once.
	FramesInFlight int

	// EnableAliasing records whether non-cross-frame-read
	// resources with disjoint usage timelines should share memory.
	EnableAliasing bool

	// DebugAsserts records whether contract-violation assertions
	// are wanted; see schedgraph.SetDebugAsserts, which this field
	// is not applied to automatically.
	DebugAsserts bool
}

// DefaultConfig returns the configuration a new frame scheduler
// starts with: two queues (graphics and one async compute), two
// frames in flight, aliasing on, asserts off.
func DefaultConfig() Config {
	return Config{
		QueueCount:      2,
		FramesInFlight:  2,
		EnableAliasing:  true,
		DebugAsserts:    false,
	}
}

var active = DefaultConfig()

// Configure replaces the active configuration.
func Configure(c Config) { active = c }

// Active returns the currently active configuration.
func Active() Config { return active }
