package sd

import "time"

// Timing is the set of SD timing parameters spec.md §4.7 lists as
// configurable, mirrored from the sd.* configuration keys in spec.md §6.
type Timing struct {
	// InitialDelay bounds a uniformly random wait before a Server's first
	// OfferService (spec.md: "INITIAL_DELAY (randomized bound)").
	InitialDelay time.Duration
	// RepetitionBaseDelay is the first repetition-phase interval; each
	// subsequent repetition doubles it (multiplier 2) up to RepetitionMax.
	RepetitionBaseDelay time.Duration
	RepetitionMax       time.Duration
	RepetitionsMax      int
	// CyclicOfferDelay is the Main-phase steady-state re-announce period.
	CyclicOfferDelay time.Duration
}

// DefaultTiming matches vsomeip's conventional defaults, used when an
// integrator doesn't override sd.* configuration.
func DefaultTiming() Timing {
	return Timing{
		InitialDelay:        200 * time.Millisecond,
		RepetitionBaseDelay: 200 * time.Millisecond,
		RepetitionMax:       3 * time.Second,
		RepetitionsMax:      3,
		CyclicOfferDelay:    2 * time.Second,
	}
}

// TTLInfinite is the wire sentinel meaning an offer or subscription never expires.
const TTLInfinite uint32 = ttlInfinite
