package alert

import "context"

// Repository defines the interface for alert persistence.
type Repository interface {
	// Create stores alerts and returns those that were new. An alert with
	// the same station, type and trigger time as a stored one is skipped.
	Create(ctx context.Context, alerts []*Alert) ([]*Alert, error)

	// List returns alerts matching opts, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Alert, error)

	// Acknowledge marks an alert as acknowledged.
	// Returns ErrAlertNotFound if the alert doesn't exist.
	Acknowledge(ctx context.Context, id string) error
}
