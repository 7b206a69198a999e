/*
Package resilience provides a circuit breaker for calls to remote backends.

The remote project store wraps every request in a Breaker so a failing
backend fails fast instead of stalling the playground:

	breaker := resilience.New("projects", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	list, err := resilience.Do(ctx, breaker, func(ctx context.Context) ([]Project, error) {
		return client.List(ctx)
	})

States move Closed -> Open after ReadyToTrip, Open -> Half-Open after
Timeout, and Half-Open -> Closed after MaxRequests consecutive successes.
Any failure while half-open reopens the circuit.
*/
package resilience
