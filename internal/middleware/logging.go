package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// groupScoped is implemented by request messages that address one group.
type groupScoped interface {
	GetGroupID() string
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, caller, group, duration, and any error code.
// Client-side faults log at WARN; internal faults at ERROR.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			attrs := []any{"procedure", req.Spec().Procedure}

			resp, err := next(ctx, req)

			if userID := GetUserID(ctx); userID != "" {
				attrs = append(attrs, "user_id", userID)
			}
			if g, ok := req.Any().(groupScoped); ok && g.GetGroupID() != "" {
				attrs = append(attrs, "group_id", g.GetGroupID())
			}
			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())

			if err == nil {
				slog.Info("RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal && connectErr.Code() != connect.CodeUnknown {
				slog.Warn("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
			} else {
				slog.Error("RPC error", append(attrs, "error", err)...)
			}
			return resp, err
		}
	}
}
