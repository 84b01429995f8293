package engine

import "time"

// Page health scoring lives on PageHandle (adaptive_pool.go); the constants
// below are its tunables, pulled out here so retirement behaviour can be
// read and reasoned about without wading through the pool's channel
// bookkeeping.
const (
	// healthSuccessRecovery is how much errScore drops on a successful fetch.
	healthSuccessRecovery = 0.5
	// healthFailurePenalty is how much errScore rises on a failed fetch.
	healthFailurePenalty = 1.0
	// healthRetireErrScore retires a handle once its errScore reaches this.
	// A handle that has failed more than it has succeeded recently (e.g.
	// three failures with no recoveries) is more likely to be carrying
	// stale cookies or a wedged renderer than serving a run of hard sites.
	healthRetireErrScore = 3.0
	// healthRetireUseCount retires a handle after this many fetches
	// regardless of error score, bounding how much DOM/JS state a single
	// tab accumulates over its lifetime.
	healthRetireUseCount = 50
	// healthRetireAge retires a handle once it has been open this long.
	healthRetireAge = 50 * time.Minute
)
