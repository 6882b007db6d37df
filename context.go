package nextcrm

import (
	"context"

	"github.com/MrEthical07/nextcrm/gateway"
)

// WithRequestID sets the X-Request-ID sent for every attempt of calls made
// with ctx. Without it each call gets a fresh uuid.
func WithRequestID(ctx context.Context, id string) context.Context {
	return gateway.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return gateway.RequestIDFromContext(ctx)
}
