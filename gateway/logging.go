package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logging writes one line per logical call. Server errors and failures log
// at Warn, everything else at Debug.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Do(ctx, req)

			fields := []zap.Field{
				zap.String("request_id", RequestIDFromContext(ctx)),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case err != nil:
				logger.Warn("nextcrm: request failed", append(fields, zap.Error(err))...)
			case resp.StatusCode >= 500:
				logger.Warn("nextcrm: request completed", append(fields, zap.Int("status", resp.StatusCode))...)
			default:
				logger.Debug("nextcrm: request completed", append(fields, zap.Int("status", resp.StatusCode))...)
			}
			return resp, err
		})
	}
}
