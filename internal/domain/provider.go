package domain

import "context"

// ObservationProvider supplies the current observation for a ward. The
// engine treats it as an external collaborator: retries, fallback data and
// timeouts are the provider's concern.
type ObservationProvider interface {
	// Current returns the live observation for the ward, together with the
	// ward's catalog entry.
	Current(ctx context.Context, wardCode string) (*Observation, *Ward, error)

	// Wards lists the ward codes the provider can serve.
	Wards() []string
}
