package middleware

import (
	"context"
	"time"

	"sprinter/internal/app/commands"
	"sprinter/internal/app/queries"
)

// Observer receives the outcome of every dispatched message.
type Observer interface {
	ObserveMessage(kind, key string, elapsed time.Duration, err error)
}

func CommandInstrumentation(o Observer) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if o == nil {
			return next
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			o.ObserveMessage("command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryInstrumentation(o Observer) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if o == nil {
			return next
		}
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			o.ObserveMessage("query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}
