package engine

import (
	"context"
	"fmt"
	"time"
)

// RodFetchFunc is the callback type that wraps the scraper's browser-backed
// fetch logic. It is injected from cmd/peel/serve.go to avoid a circular
// import (engine/ -> scraper/).
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// stealthTimeoutFloor is the minimum timeout the stealth rung gets
// regardless of what the caller asked for: utls fingerprinting and
// human-like interaction delays make the stealth rung slower per
// attempt than plain rod, so a timeout sized for the earlier rungs can
// starve it before it ever gets a fair shot.
const stealthTimeoutFloor = 25 * time.Second

// RodEngine is a browser-based engine that delegates to the scraper's rod
// logic via a callback function. The forceStealth flag distinguishes
// between the plain-browser rung and the stealth rung on the escalation
// ladder (spec §4.1).
type RodEngine struct {
	fetchFunc    RodFetchFunc
	forceStealth bool
	name         string
}

// NewRodEngine creates a RodEngine.
//   - fetchFunc: callback that invokes the rod-based scraper.
//   - forceStealth: when true, the engine always sets Stealth=true on
//     requests and enforces stealthTimeoutFloor.
func NewRodEngine(fetchFunc RodFetchFunc, forceStealth bool) *RodEngine {
	name := "rod"
	if forceStealth {
		name = "rod-stealth"
	}
	return &RodEngine{
		fetchFunc:    fetchFunc,
		forceStealth: forceStealth,
		name:         name,
	}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.name)
	}

	// Clone the request so we don't mutate the caller's copy.
	r := *req
	if e.forceStealth {
		r.Stealth = true
		if r.Timeout < stealthTimeoutFloor {
			r.Timeout = stealthTimeoutFloor
		}
	}

	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	result.EngineName = e.name
	return result, nil
}
