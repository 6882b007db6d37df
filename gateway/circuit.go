package gateway

import (
	"context"
	"net/http"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"github.com/tidwall/gjson"
)

// IsCircuitBreakerOpen reports whether resp is the backend's
// "refresh attempts blocked" signal.
func IsCircuitBreakerOpen(resp *Response) bool {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return gjson.GetBytes(resp.Body, "code").String() == CircuitBreakerCode
}

// CircuitBreaker sends the user to login as soon as the backend reports its
// refresh circuit breaker open. The response is passed up untouched and
// becomes an error matching ErrCircuitBreakerOpen.
func CircuitBreaker(redirector *LoginRedirector, inst instruments) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next.Do(ctx, req)
			if err != nil || !IsCircuitBreakerOpen(resp) {
				return resp, err
			}

			inst.inc(metrics.CircuitBreakerOpen)
			ev := requestEvent(ctx, events.TypeCircuitBreakerOpen, false, req)
			ev.Status = resp.StatusCode
			inst.emit(ctx, ev)

			redirector.Redirect(ctx, ReasonCircuitBreaker)
			return resp, nil
		})
	}
}
