package gateway

import "context"

// Handler sends one request and returns the backend's response. A non-nil
// error means no usable response exists (transport failure, cancelled
// context, rejected refresh); error statuses come back as a Response.
type Handler interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f HandlerFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with one pipeline stage.
type Middleware func(next Handler) Handler

// Chain wraps h with mws. The first middleware is the outermost stage.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}
