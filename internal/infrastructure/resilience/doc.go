/*
Package resilience provides a circuit breaker for remote calls.

# Overview

This package implements the circuit breaker pattern used around the
release update endpoint, so a misbehaving remote cannot stall the daemon
with repeated slow failures.

# Usage

	breaker := resilience.New("updates", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return client.Fetch(ctx)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Remote unavailable, requests fail immediately with ErrCircuitOpen
- Half-Open: Testing recovery, up to MaxRequests probes allowed

The breaker transitions between states based on outcomes:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
