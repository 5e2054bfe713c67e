// Package delivery defines the transport-facing surfaces of the client.
package delivery

import "context"

// Delivery is a servable endpoint whose shutdown is driven by the Fx
// lifecycle.
type Delivery interface {
	Serve(ctx context.Context) error
}
